package source

import (
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestAuthority_Classify(t *testing.T) {
	a := NewAuthority(model.SourceConfig{
		PrimaryDomains:   []string{"legislation.gov.uk", "doi.org", "scholar.google.com"},
		SecondaryDomains: []string{"wikipedia.org"},
		DomainMap:        map[string]string{"blog.example.com": "secondary", "example.org": "primary"},
		PathPatterns: []model.PathPattern{
			{Pattern: `^/doi/`, Tier: "primary"},
			{Pattern: `[`, Tier: "primary"}, // invalid, skipped
		},
	})

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://legislation.gov.uk/ukpga/1998/42", model.AuthorityPrimary, "primary exact match"},
		{"https://www.legislation.gov.uk/statute", model.AuthorityPrimary, "primary with subdomain"},
		{"https://doi.org/10.1234/example", model.AuthorityPrimary, "doi"},
		{"https://scholar.google.com/citations", model.AuthorityPrimary, "listed host under a larger domain"},
		{"https://google.com/search", model.AuthorityTertiary, "parent of a listed host is not listed"},
		{"https://en.wikipedia.org/wiki/Water", model.AuthoritySecondary, "secondary via registrable domain"},
		{"https://blog.example.com/post", model.AuthoritySecondary, "explicit host mapping"},
		{"https://www.example.org/", model.AuthorityPrimary, "explicit registrable domain mapping"},
		{"https://publisher.com/doi/10.1/x", model.AuthorityPrimary, "path pattern"},
		{"https://www.nasa.gov/news", model.AuthorityPrimary, "government suffix"},
		{"https://www.cam.ac.uk/research", model.AuthorityPrimary, "academic suffix"},
		{"https://www.bbc.co.uk/news", model.AuthorityTertiary, "commercial suffix"},
		{"https://LEGISLATION.GOV.UK:443/x", model.AuthorityPrimary, "case and port ignored"},
		{"not a url", model.AuthorityTertiary, "unparseable"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := a.Classify(tt.url); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	cases := map[string]model.AuthorityTier{
		"primary":   model.AuthorityPrimary,
		" Primary ": model.AuthorityPrimary,
		"2":         model.AuthoritySecondary,
		"secondary": model.AuthoritySecondary,
		"tertiary":  model.AuthorityTertiary,
		"bogus":     model.AuthorityTertiary,
	}
	for in, want := range cases {
		if got := ParseTier(in); got != want {
			t.Errorf("ParseTier(%q) = %v, want %v", in, got, want)
		}
	}
}
