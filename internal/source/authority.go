// Package source verifies the URLs cited by evidence: it ranks the publisher's authority
// and checks that the document can still be reached.
package source

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/veracity/internal/model"
)

// Authority ranks source URLs into authority tiers
type Authority struct {
	domainMap map[string]model.AuthorityTier
	primary   map[string]bool
	secondary map[string]bool
	patterns  []tierPattern
}

type tierPattern struct {
	re   *regexp.Regexp
	tier model.AuthorityTier
}

// NewAuthority builds a classifier from the configured domain lists. Invalid path
// patterns are skipped.
func NewAuthority(cfg model.SourceConfig) *Authority {
	a := &Authority{
		domainMap: make(map[string]model.AuthorityTier, len(cfg.DomainMap)),
		primary:   make(map[string]bool, len(cfg.PrimaryDomains)),
		secondary: make(map[string]bool, len(cfg.SecondaryDomains)),
	}
	for host, tier := range cfg.DomainMap {
		a.domainMap[strings.ToLower(host)] = ParseTier(tier)
	}
	for _, d := range cfg.PrimaryDomains {
		a.primary[strings.ToLower(d)] = true
	}
	for _, d := range cfg.SecondaryDomains {
		a.secondary[strings.ToLower(d)] = true
	}
	for _, p := range cfg.PathPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		a.patterns = append(a.patterns, tierPattern{re: re, tier: ParseTier(p.Tier)})
	}
	return a
}

// Classify returns the authority tier of rawURL. Unparseable URLs are tertiary.
func (a *Authority) Classify(rawURL string) model.AuthorityTier {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return model.AuthorityTertiary
	}
	host := strings.ToLower(u.Hostname())

	// Explicit mappings win, first for the exact host and then for its registrable domain
	// (en.wikipedia.org -> wikipedia.org, www.legislation.gov.uk -> legislation.gov.uk).
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	if tier, ok := a.domainMap[registrable]; ok {
		return tier
	}

	if matchDomain(a.primary, host, registrable) {
		return model.AuthorityPrimary
	}
	if matchDomain(a.secondary, host, registrable) {
		return model.AuthoritySecondary
	}

	for _, p := range a.patterns {
		if p.re.MatchString(u.Path) {
			return p.tier
		}
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if icann && isAcademicOrGovernment(suffix) {
		return model.AuthorityPrimary
	}
	return model.AuthorityTertiary
}

// matchDomain reports whether host or any parent up to its registrable domain is listed.
// Listed domains may themselves be public suffixes such as gov.uk or europa.eu.
func matchDomain(set map[string]bool, host, registrable string) bool {
	if set[host] || set[registrable] {
		return true
	}
	for d := range set {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isAcademicOrGovernment(suffix string) bool {
	switch suffix {
	case "gov", "edu", "mil", "ac.uk", "gov.uk", "edu.au", "gov.au":
		return true
	}
	return false
}

// ParseTier converts a configured tier name into an AuthorityTier. Unknown names are tertiary.
func ParseTier(s string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "1":
		return model.AuthorityPrimary
	case "secondary", "2":
		return model.AuthoritySecondary
	default:
		return model.AuthorityTertiary
	}
}
