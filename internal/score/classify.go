package score

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
	"gopkg.in/yaml.v3"
)

// Classifier maps scores to tiers using per-category cutoffs
type Classifier struct {
	table map[string]model.CategoryCutoffs
}

// NewClassifier validates the table and builds a classifier.
// Category names are matched case-insensitively; the table must contain a "default" row.
func NewClassifier(table map[string]model.CategoryCutoffs) (*Classifier, error) {
	if err := ValidateCategoryTable(table); err != nil {
		return nil, err
	}
	norm := make(map[string]model.CategoryCutoffs, len(table))
	for name, cut := range table {
		norm[strings.ToLower(name)] = cut
	}
	return &Classifier{table: norm}, nil
}

// ValidateCategoryTable checks every row and the presence of the default row
func ValidateCategoryTable(table map[string]model.CategoryCutoffs) error {
	var errs []error
	if _, ok := table[model.DefaultCategory]; !ok {
		errs = append(errs, fmt.Errorf("category table has no %q row", model.DefaultCategory))
	}
	for name, cut := range table {
		if err := cut.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// LoadCategoryTable reads a YAML category table from disk
func LoadCategoryTable(path string) (map[string]model.CategoryCutoffs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	var table map[string]model.CategoryCutoffs
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	if err := ValidateCategoryTable(table); err != nil {
		return nil, err
	}
	return table, nil
}

// Cutoffs returns the row for a category, falling back to the default row
func (c *Classifier) Cutoffs(category string) model.CategoryCutoffs {
	if cut, ok := c.table[strings.ToLower(category)]; ok {
		return cut
	}
	return c.table[model.DefaultCategory]
}

// Classify maps a score to its tier. Anything below the weak cutoff is excluded.
func (c *Classifier) Classify(score float64, category string) model.Tier {
	cut := c.Cutoffs(category)
	switch {
	case score >= cut.VerifiedMin:
		return model.TierVerified
	case score >= cut.CredibleMin:
		return model.TierCredible
	case score >= cut.WeakMin:
		return model.TierWeak
	default:
		return model.TierExcluded
	}
}

// Buckets holds items grouped by tier, each in its original order
type Buckets[T any] struct {
	Verified []T
	Credible []T
	Weak     []T
	Excluded []T
}

// Get returns the bucket for a tier
func (b Buckets[T]) Get(t model.Tier) []T {
	switch t {
	case model.TierVerified:
		return b.Verified
	case model.TierCredible:
		return b.Credible
	case model.TierWeak:
		return b.Weak
	default:
		return b.Excluded
	}
}

// Partition groups items into the four tiers in one pass, preserving order within each bucket
func Partition[T any](c *Classifier, items []T, scoreOf func(T) float64, category string) Buckets[T] {
	var b Buckets[T]
	for _, it := range items {
		switch c.Classify(scoreOf(it), category) {
		case model.TierVerified:
			b.Verified = append(b.Verified, it)
		case model.TierCredible:
			b.Credible = append(b.Credible, it)
		case model.TierWeak:
			b.Weak = append(b.Weak, it)
		default:
			b.Excluded = append(b.Excluded, it)
		}
	}
	return b
}
