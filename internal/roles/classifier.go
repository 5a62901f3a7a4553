// Package roles maps a person's title and signals to a sales role with an
// influence level and a confidence score.
package roles

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
)

// Rule binds one role to its trigger keywords. Rules are evaluated
// top-down and the first keyword hit wins, so precedence lives in the
// table order, not in code. Exact lists full titles that count as an
// exact variant for confidence scoring.
type Rule struct {
	Role     domain.Role
	Keywords []string
	Exact    []string
}

// DefaultRules is the production precedence order:
// DecisionMaker > Champion > Blocker > Introducer; Stakeholder is the
// fallback when nothing matches. A title hitting keywords from two
// categories resolves to whichever category is listed first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Role: domain.RoleDecisionMaker,
			Keywords: []string{
				"chief", "president", "vice president", "vp",
				"director", "general manager", "head of",
				"owner", "founder", "manager",
			},
			Exact: []string{
				"ceo", "cto", "cfo", "coo",
				"chief executive officer", "chief technology officer",
				"chief financial officer", "chief operating officer",
			},
		},
		{
			Role: domain.RoleChampion,
			Keywords: []string{
				"engineer", "technical", "architect",
				"project manager", "lead", "senior", "principal",
			},
		},
		{
			Role: domain.RoleBlocker,
			Keywords: []string{
				"legal", "compliance", "security", "procurement",
				"counsel", "assistant", "intern", "junior",
			},
		},
		{
			Role: domain.RoleIntroducer,
			Keywords: []string{
				"business development", "marketing", "sales",
				"partnership", "account", "growth",
			},
		},
	}
}

// Classifier evaluates an ordered rule table against titles.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier; nil rules select DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify resolves a title to a role. Pure and deterministic: the same
// title always yields the same role.
func (c *Classifier) Classify(title string) domain.Role {
	role, _, _ := c.match(title)
	return role
}

// match returns the winning role, the keyword that triggered it (empty
// for the Stakeholder fallback), and whether the title is an exact
// variant of the category.
func (c *Classifier) match(title string) (domain.Role, string, bool) {
	normalized := normalize(title)
	for _, rule := range c.rules {
		for _, exact := range rule.Exact {
			if normalized == exact {
				return rule.Role, exact, true
			}
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				return rule.Role, kw, normalized == kw
			}
		}
	}
	return domain.RoleStakeholder, "", false
}

// InfluenceFor is the fixed role-to-influence lookup.
func InfluenceFor(role domain.Role) domain.Influence {
	switch role {
	case domain.RoleDecisionMaker, domain.RoleChampion:
		return domain.InfluenceHigh
	case domain.RoleIntroducer, domain.RoleStakeholder:
		return domain.InfluenceMedium
	case domain.RoleBlocker:
		return domain.InfluenceLow
	}
	return domain.InfluenceMedium
}

// Score classifies one candidate and computes decision power, influence
// and confidence in a single pass. asOf anchors the recency term so reruns
// over stored data stay reproducible.
func (c *Classifier) Score(person domain.CandidatePerson, company domain.Company, asOf time.Time) domain.RoleClassification {
	role, keyword, exact := c.match(person.Title)

	rationale := "no keyword match; defaulted to Stakeholder"
	if keyword != "" {
		rationale = fmt.Sprintf("title matched %q (%s)", keyword, role)
	}

	return domain.RoleClassification{
		Person:        person,
		Role:          role,
		DecisionPower: decisionPower(person.Title, role),
		Influence:     InfluenceFor(role),
		Confidence:    c.confidence(person, company, keyword != "", exact, asOf),
		Rationale:     rationale,
	}
}

// Confidence scores how sure we are that this person, in this role,
// belongs to this company's buyer group. Always within [0,100].
func (c *Classifier) Confidence(person domain.CandidatePerson, company domain.Company, asOf time.Time) int {
	_, keyword, exact := c.match(person.Title)
	return c.confidence(person, company, keyword != "", exact, asOf)
}

func (c *Classifier) confidence(person domain.CandidatePerson, company domain.Company, matched, exact bool, asOf time.Time) int {
	score := 0

	// Title match: exact variant 40, partial 30, none 0.
	switch {
	case exact:
		score += 40
	case matched:
		score += 30
	}

	score += companyNameScore(person.CompanyName, company.Name)
	score += completenessScore(person)
	score += recencyScore(person.LastUpdated, asOf)

	return clamp(score, 0, 100)
}

// companyNameScore awards up to 30 for the provider-reported employer
// matching the target company name.
func companyNameScore(reported, target string) int {
	reported = normalize(reported)
	target = normalize(target)
	if reported == "" || target == "" {
		return 0
	}
	if reported == target {
		return 30
	}
	if strings.Contains(reported, target) || strings.Contains(target, reported) {
		return 20
	}
	return 0
}

// completenessScore awards 5 points per present contact field, up to 20.
func completenessScore(person domain.CandidatePerson) int {
	score := 0
	if strings.TrimSpace(person.FullName) != "" {
		score += 5
	}
	if person.Email() != "" {
		score += 5
	}
	if person.Phone() != "" {
		score += 5
	}
	if strings.TrimSpace(person.LinkedInURL) != "" {
		score += 5
	}
	return score
}

// recencyScore rewards recently refreshed profiles: <6mo 10, <12mo 5.
func recencyScore(lastUpdated, asOf time.Time) int {
	if lastUpdated.IsZero() {
		return 0
	}
	age := asOf.Sub(lastUpdated)
	switch {
	case age < 6*30*24*time.Hour:
		return 10
	case age < 12*30*24*time.Hour:
		return 5
	}
	return 0
}

// decisionPower bands the title by authority level and adds a role
// weighting: chief/president 40, vp 30, director/head 20,
// manager/lead 10.
func decisionPower(title string, role domain.Role) int {
	normalized := normalize(title)

	power := 0
	switch {
	case containsAny(normalized, "chief", "president", "ceo", "cto", "cfo", "coo", "owner", "founder"):
		power = 40
	case containsAny(normalized, "vice president", "vp"):
		power = 30
	case containsAny(normalized, "director", "head of", "general manager"):
		power = 20
	case containsAny(normalized, "manager", "lead"):
		power = 10
	}

	switch role {
	case domain.RoleDecisionMaker:
		power += 40
	case domain.RoleChampion:
		power += 25
	case domain.RoleIntroducer, domain.RoleStakeholder:
		power += 15
	case domain.RoleBlocker:
		power += 10
	}

	return clamp(power, 0, 100)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
