package model

import "time"

// SourceConfig controls verification of evidence citations
type SourceConfig struct {
	CheckOnSubmit    bool              `yaml:"check_on_submit" mapstructure:"check_on_submit"`
	Timeout          time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Workers          int               `yaml:"workers" mapstructure:"workers"`
	UserAgent        string            `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots    bool              `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy        string            `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy       string            `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy          string            `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host or registrable domain -> primary|secondary|tertiary
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns an authority tier to URLs whose path matches a regular expression
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// AuthorityTier ranks how authoritative a cited source is
type AuthorityTier int

const (
	AuthorityUnknown   AuthorityTier = 0
	AuthorityPrimary   AuthorityTier = 1 // Statutes, papers, official records
	AuthoritySecondary AuthorityTier = 2 // Encyclopedias, major publishers
	AuthorityTertiary  AuthorityTier = 3 // Everything else
)

func (t AuthorityTier) String() string {
	switch t {
	case AuthorityPrimary:
		return "primary"
	case AuthoritySecondary:
		return "secondary"
	case AuthorityTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

func defaultSourceConfig() SourceConfig {
	return SourceConfig{
		Timeout:       10 * time.Second,
		Workers:       8,
		UserAgent:     "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
		RespectRobots: true,
		PrimaryDomains: []string{
			"doi.org",
			"legislation.gov.uk",
			"europa.eu",
			"who.int",
			"nih.gov",
			"arxiv.org",
		},
		SecondaryDomains: []string{
			"wikipedia.org",
			"britannica.com",
			"reuters.com",
			"apnews.com",
			"nature.com",
		},
		PathPatterns: []PathPattern{
			{Pattern: `^/doi/`, Tier: "primary"},
			{Pattern: `\.pdf$`, Tier: "secondary"},
		},
	}
}
