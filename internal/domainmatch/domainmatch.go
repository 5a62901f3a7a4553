// Package domainmatch normalizes URLs and emails into comparable root
// domains and decides whether two domains belong to the same organization.
package domainmatch

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/adrata/buyergroup/internal/domain"
)

// Extract normalizes a URL or email address into a bare lower-case domain.
// It strips the scheme, a leading "www.", path, query, and port; for an
// email it takes everything after "@". The second return value is false
// when no domain can be derived.
func Extract(urlOrEmail string) (string, bool) {
	s := strings.TrimSpace(strings.ToLower(urlOrEmail))
	if s == "" {
		return "", false
	}

	if at := strings.LastIndex(s, "@"); at >= 0 {
		s = s[at+1:]
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")

	for _, sep := range []string{"/", "?", "#", ":"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}

	s = strings.Trim(s, ".")
	if s == "" || !strings.Contains(s, ".") {
		return "", false
	}
	return s, true
}

// Match reports whether two domains belong to the same organization:
// exact equality, or an identical root domain. Inputs with fewer than two
// dot-separated labels never match. "mail.acme.com" matches "acme.com";
// "acme.cz" never matches "acme.com".
func Match(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return strings.Contains(a, ".")
	}

	rootA, okA := Root(a)
	rootB, okB := Root(b)
	if !okA || !okB {
		return false
	}
	return rootA == rootB
}

// Root resolves the organizational root of a domain. The public-suffix
// list handles multi-part TLDs (acme.co.uk); unknown suffixes fall back
// to the last two labels. Domains with fewer than two labels have no root.
func Root(domain string) (string, bool) {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	labels := strings.Split(domain, ".")
	if len(labels) < 2 || labels[0] == "" {
		return "", false
	}

	if root, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return root, true
	}
	return strings.Join(labels[len(labels)-2:], "."), true
}

// AuditMembers re-checks already-admitted members against the company
// canonical domain and returns those whose resolved email domain no
// longer matches, flagged for removal. Members without an email are not
// flagged; absence of contact data is not a mismatch.
func AuditMembers(company domain.Company, members []domain.RoleClassification) []domain.CandidatePerson {
	var flagged []domain.CandidatePerson
	for _, m := range members {
		email := m.Person.Email()
		if email == "" {
			continue
		}
		emailDomain, ok := Extract(email)
		if !ok || !Match(emailDomain, company.CanonicalDomain) {
			flagged = append(flagged, m.Person)
		}
	}
	return flagged
}
