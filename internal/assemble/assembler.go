// Package assemble combines validated, classified, enriched people into a
// scored buyer group record.
package assemble

import (
	"math"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
)

// Assembler builds BuyerGroup records. Assembly happens only after every
// member is classified and enrichment has been attempted.
type Assembler struct {
	now func() time.Time
}

// New returns an assembler using wall-clock time.
func New() *Assembler {
	return &Assembler{now: time.Now}
}

// Assemble produces the scored group for one company. A group with no
// admitted members is a valid, explicit result: it means no buyer group
// could be formed, and is returned successfully, not as an error.
func (a *Assembler) Assemble(runID string, company domain.Company, members []domain.RoleClassification, excluded []domain.CandidatePerson, attempts []domain.EnrichmentAttempt) domain.BuyerGroup {
	group := domain.BuyerGroup{
		RunID:             runID,
		Company:           company,
		Members:           members,
		Excluded:          excluded,
		CohesionScore:     cohesionScore(members),
		OverallConfidence: overallConfidence(members),
		TotalCost:         totalCost(attempts),
		Strategy:          engagementStrategy(members),
		Priority:          groupPriority(members),
		AssembledAt:       a.now(),
	}
	return group
}

// cohesionScore blends role-type diversity (more distinct roles present,
// higher score) with the consistency of member confidences (tighter
// spread, higher score). Monotonic in both inputs, bounded [0,100].
func cohesionScore(members []domain.RoleClassification) int {
	if len(members) == 0 {
		return 0
	}

	distinct := map[domain.Role]struct{}{}
	for _, m := range members {
		distinct[m.Role] = struct{}{}
	}
	diversity := 60.0 * float64(len(distinct)) / float64(len(domain.Roles()))

	// Confidence spread: a standard deviation of 0 earns the full 40
	// consistency points, 50+ earns none.
	spread := confidenceStdDev(members)
	consistency := 40.0 * (1.0 - math.Min(spread, 50.0)/50.0)

	score := int(math.Round(diversity + consistency))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func confidenceStdDev(members []domain.RoleClassification) float64 {
	mean := 0.0
	for _, m := range members {
		mean += float64(m.Confidence)
	}
	mean /= float64(len(members))

	variance := 0.0
	for _, m := range members {
		d := float64(m.Confidence) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(members)))
}

// overallConfidence is the arithmetic mean of member confidences, 0 when
// the group is empty.
func overallConfidence(members []domain.RoleClassification) int {
	if len(members) == 0 {
		return 0
	}
	sum := 0
	for _, m := range members {
		sum += m.Confidence
	}
	return sum / len(members)
}

// totalCost sums credit cost over the company's full attempt trail,
// including skipped and failed calls (they cost zero or their billed
// price as recorded).
func totalCost(attempts []domain.EnrichmentAttempt) int {
	sum := 0
	for _, at := range attempts {
		sum += at.CreditCost
	}
	return sum
}

// engagementStrategy recommends the outreach approach from group
// composition: executive sponsor when a decision maker is present, then
// champion-led, then blocker mitigation, else stakeholder consensus.
func engagementStrategy(members []domain.RoleClassification) domain.EngagementStrategy {
	counts := map[domain.Role]int{}
	for _, m := range members {
		counts[m.Role]++
	}
	switch {
	case counts[domain.RoleDecisionMaker] > 0:
		return domain.StrategyExecutiveSponsor
	case counts[domain.RoleChampion] > 0:
		return domain.StrategyChampionLed
	case counts[domain.RoleBlocker] > 0:
		return domain.StrategyBlockerMitigation
	}
	return domain.StrategyStakeholderConsensus
}

// groupPriority ranks the group by aggregate influence and average
// decision power.
func groupPriority(members []domain.RoleClassification) domain.GroupPriority {
	if len(members) == 0 {
		return domain.PriorityLow
	}

	totalInfluence := 0.0
	avgPower := 0.0
	for _, m := range members {
		switch m.Influence {
		case domain.InfluenceHigh:
			totalInfluence += 1.0
		case domain.InfluenceMedium:
			totalInfluence += 0.6
		case domain.InfluenceLow:
			totalInfluence += 0.3
		}
		avgPower += float64(m.DecisionPower)
	}
	avgPower /= float64(len(members)) * 100.0

	switch {
	case totalInfluence > 3.0 && avgPower > 0.4:
		return domain.PriorityHigh
	case totalInfluence > 2.0 && avgPower > 0.3:
		return domain.PriorityMedium
	}
	return domain.PriorityLow
}
