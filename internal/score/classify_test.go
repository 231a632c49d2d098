package score

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/veracity/internal/model"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(model.DefaultConfig().Categories)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	return c
}

func TestClassify_Cutoffs(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		score    float64
		category string
		want     model.Tier
	}{
		{0.95, "default", model.TierVerified},
		{0.9, "default", model.TierVerified},
		{0.89, "default", model.TierCredible},
		{0.7, "default", model.TierCredible},
		{0.4, "default", model.TierWeak},
		{0.39, "default", model.TierExcluded},
		{0.9, "scientific", model.TierCredible},
		{0.85, "Historical", model.TierVerified},
		{0.3, "opinion", model.TierWeak},
		{0.75, "unknown-category", model.TierCredible},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.score, tt.category); got != tt.want {
			t.Errorf("Classify(%v, %q) = %s, want %s", tt.score, tt.category, got, tt.want)
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	c := defaultClassifier(t)
	for _, category := range []string{"default", "scientific", "historical", "opinion"} {
		prev := model.TierExcluded
		for i := 0; i <= 1000; i++ {
			tier := c.Classify(float64(i)/1000, category)
			if tier < prev {
				t.Fatalf("%s: tier dropped from %s to %s at %v", category, prev, tier, float64(i)/1000)
			}
			prev = tier
		}
	}
}

func TestPartition_StableInOnePass(t *testing.T) {
	c := defaultClassifier(t)
	type pos struct {
		id    string
		score float64
	}
	items := []pos{{"a", 0.2}, {"b", 0.95}, {"c", 0.75}, {"d", 0.5}, {"e", 0.91}, {"f", 0.72}, {"g", 0.1}}

	b := Partition(c, items, func(p pos) float64 { return p.score }, "default")

	ids := func(ps []pos) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.id)
		}
		return out
	}
	got := map[string][]string{
		"verified": ids(b.Get(model.TierVerified)),
		"credible": ids(b.Get(model.TierCredible)),
		"weak":     ids(b.Get(model.TierWeak)),
		"excluded": ids(b.Get(model.TierExcluded)),
	}
	want := map[string][]string{
		"verified": {"b", "e"},
		"credible": {"c", "f"},
		"weak":     {"d"},
		"excluded": {"a", "g"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Partition() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewClassifier_RejectsBadTable(t *testing.T) {
	if _, err := NewClassifier(map[string]model.CategoryCutoffs{
		"scientific": {VerifiedMin: 0.9, CredibleMin: 0.8, WeakMin: 0.5},
	}); err == nil {
		t.Error("expected error for table without default row")
	}
	if _, err := NewClassifier(map[string]model.CategoryCutoffs{
		model.DefaultCategory: {VerifiedMin: 0.6, CredibleMin: 0.7, WeakMin: 0.4},
	}); err == nil {
		t.Error("expected error for verified below credible")
	}
	if _, err := NewClassifier(map[string]model.CategoryCutoffs{
		model.DefaultCategory: {VerifiedMin: 1.2, CredibleMin: 0.7, WeakMin: 0.4},
	}); err == nil {
		t.Error("expected error for cutoff above 1")
	}
}

func TestLoadCategoryTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	data := `default:
  verified_min: 0.9
  credible_min: 0.7
  weak_min: 0.4
legal:
  verified_min: 0.97
  credible_min: 0.85
  weak_min: 0.6
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadCategoryTable(path)
	if err != nil {
		t.Fatalf("LoadCategoryTable() error = %v", err)
	}
	want := model.CategoryCutoffs{VerifiedMin: 0.97, CredibleMin: 0.85, WeakMin: 0.6}
	if diff := cmp.Diff(want, table["legal"]); diff != "" {
		t.Errorf("legal row mismatch (-want +got):\n%s", diff)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("legal:\n  verified_min: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCategoryTable(bad); err == nil {
		t.Error("expected validation error")
	}
}
