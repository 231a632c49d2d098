// Package dedupe finds inquiries that ask the same question as a new one.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/embed"
	"github.com/ppiankov/veracity/internal/model"
)

// Match is an existing inquiry similar to the candidate
type Match struct {
	ExistingID string  `json:"existing_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Report is the result of a duplicate check. Degraded means the embedding could not be
// computed in time and no comparison was made.
type Report struct {
	Matches   []Match   `json:"matches"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"reason,omitempty"`
	Threshold float64   `json:"threshold"`
	Embedding []float32 `json:"-"`
}

// Blocking returns the matches above the duplicate threshold
func (r Report) Blocking() []Match {
	var out []Match
	for _, m := range r.Matches {
		if m.Similarity > r.Threshold {
			out = append(out, m)
		}
	}
	return out
}

// InquiryLister lists the comparison set for a scope and category
type InquiryLister interface {
	ListActiveInquiries(ctx context.Context, scopeID, category string) ([]model.Inquiry, error)
}

// Detector compares a candidate inquiry against the active inquiries of its scope
type Detector struct {
	embedder  embed.Embedder
	inquiries InquiryLister
	cfg       model.DuplicateConfig
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDetector creates a detector. timeout bounds each embedding call (5s when zero).
func NewDetector(embedder embed.Embedder, inquiries InquiryLister, cfg model.DuplicateConfig, timeout time.Duration, logger *slog.Logger) *Detector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		embedder:  embedder,
		inquiries: inquiries,
		cfg:       cfg,
		timeout:   timeout,
		logger:    logger,
	}
}

// FindDuplicates ranks the active inquiries of scopeID/category by similarity to the candidate.
// An unavailable or slow embedding provider yields a degraded report, never an error.
func (d *Detector) FindDuplicates(ctx context.Context, title, description, scopeID, category string) (Report, error) {
	report := Report{Threshold: d.cfg.SimilarityThreshold}

	vec, err := d.embed(ctx, title, description)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		depErr := apperr.DependencyTimeout("dedupe.FindDuplicates", err)
		d.logger.Warn("duplicate check degraded", "provider", d.embedder.Name(), "scope", scopeID, "error", depErr)
		report.Degraded = true
		report.Reason = depErr.Error()
		return report, nil
	}
	report.Embedding = vec

	existing, err := d.inquiries.ListActiveInquiries(ctx, scopeID, category)
	if err != nil {
		return report, fmt.Errorf("load comparison set: %w", err)
	}

	for _, q := range existing {
		sim := CosineSimilarity(vec, q.Embedding)
		if sim <= 0 {
			continue
		}
		report.Matches = append(report.Matches, Match{ExistingID: q.ID, Title: q.Title, Similarity: sim})
	}
	sort.SliceStable(report.Matches, func(i, j int) bool {
		return report.Matches[i].Similarity > report.Matches[j].Similarity
	})
	if d.cfg.MaxResults > 0 && len(report.Matches) > d.cfg.MaxResults {
		report.Matches = report.Matches[:d.cfg.MaxResults]
	}
	return report, nil
}

// Embed computes the embedding of an inquiry under the detector's timeout
func (d *Detector) Embed(ctx context.Context, title, description string) ([]float32, error) {
	return d.embed(ctx, title, description)
}

func (d *Detector) embed(ctx context.Context, title, description string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := d.embedder.Embed(ctx, embed.InquiryText(title, description))
		ch <- result{vec, err}
	}()

	// Providers that ignore cancellation still cannot hold the caller past the deadline
	select {
	case r := <-ch:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckJustification enforces the minimum justification length, counted in characters
func CheckJustification(op, justification string, minChars int) error {
	if n := utf8.RuneCountInString(justification); n < minChars {
		return apperr.Validation(op, "justification must be at least %d characters (got %d)", minChars, n)
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, dot/(math.Sqrt(normA)*math.Sqrt(normB))))
}
