package domain

import "time"

// Company identifies one target organization for a pipeline run.
// CanonicalDomain is derived once at run start and is the ground truth
// for membership validation; it never changes during the run.
type Company struct {
	Name            string
	CanonicalDomain string
	Website         string
	LinkedInURL     string
}

// ExclusionReason explains why a candidate was kept out of the group.
type ExclusionReason string

const (
	ExclusionNone           ExclusionReason = ""
	ExclusionDomainMismatch ExclusionReason = "domainMismatch"
)

// CandidatePerson is a deduplicated person surfaced by discovery.
// ExternalSourceID is the dedupe key: within one run there is never more
// than one candidate per external id.
type CandidatePerson struct {
	ExternalSourceID string
	FullName         string
	Title            string
	CompanyName      string
	EmailCandidates  []string
	PhoneCandidates  []string
	LinkedInURL      string
	LastUpdated      time.Time
	Excluded         bool
	ExclusionReason  ExclusionReason
}

// Email returns the first resolved email candidate, if any.
func (p CandidatePerson) Email() string {
	if len(p.EmailCandidates) == 0 {
		return ""
	}
	return p.EmailCandidates[0]
}

// Phone returns the first resolved phone candidate, if any.
func (p CandidatePerson) Phone() string {
	if len(p.PhoneCandidates) == 0 {
		return ""
	}
	return p.PhoneCandidates[0]
}

// Role is the closed sales-role taxonomy.
type Role string

const (
	RoleDecisionMaker Role = "DecisionMaker"
	RoleChampion      Role = "Champion"
	RoleStakeholder   Role = "Stakeholder"
	RoleBlocker       Role = "Blocker"
	RoleIntroducer    Role = "Introducer"
)

// Roles lists every valid role in taxonomy order.
func Roles() []Role {
	return []Role{RoleDecisionMaker, RoleChampion, RoleStakeholder, RoleBlocker, RoleIntroducer}
}

// IsValid reports whether the role belongs to the closed taxonomy.
func (r Role) IsValid() bool {
	switch r {
	case RoleDecisionMaker, RoleChampion, RoleStakeholder, RoleBlocker, RoleIntroducer:
		return true
	}
	return false
}

// Influence is the closed influence-level scale attached to a role.
type Influence string

const (
	InfluenceHigh   Influence = "High"
	InfluenceMedium Influence = "Medium"
	InfluenceLow    Influence = "Low"
)

// RoleClassification is the scored role assignment for one person.
// Computed once per person; deterministic for the same title input.
type RoleClassification struct {
	Person        CandidatePerson
	Role          Role
	DecisionPower int // 0-100
	Influence     Influence
	Confidence    int // 0-100
	Rationale     string
}

// Operation is one of the three billable provider verbs.
type Operation string

const (
	OpSearch  Operation = "search"
	OpCollect Operation = "collect"
	OpEnrich  Operation = "enrich"
)

// AttemptOutcome records how a single provider call ended.
type AttemptOutcome string

const (
	OutcomeSuccess       AttemptOutcome = "success"
	OutcomeNoResult      AttemptOutcome = "noResult"
	OutcomeProviderError AttemptOutcome = "providerError"
	OutcomeSkippedBudget AttemptOutcome = "skippedBudget"
)

// EnrichmentAttempt is one entry in the append-only billing audit trail.
// Never mutated after creation.
type EnrichmentAttempt struct {
	PersonID   string
	Provider   string
	Operation  Operation
	Outcome    AttemptOutcome
	CreditCost int
	At         time.Time
}

// EngagementStrategy is the recommended approach for a group.
type EngagementStrategy string

const (
	StrategyExecutiveSponsor     EngagementStrategy = "executiveSponsor"
	StrategyChampionLed          EngagementStrategy = "championLed"
	StrategyBlockerMitigation    EngagementStrategy = "blockerMitigation"
	StrategyStakeholderConsensus EngagementStrategy = "stakeholderConsensus"
)

// GroupPriority ranks assembled groups for outreach ordering.
type GroupPriority string

const (
	PriorityHigh   GroupPriority = "high"
	PriorityMedium GroupPriority = "medium"
	PriorityLow    GroupPriority = "low"
)

// BuyerGroup is the scored result for one company. A group with zero
// admitted members is a valid outcome meaning no buyer group could be
// formed; callers must check len(Members), not rely on a non-error return.
type BuyerGroup struct {
	RunID             string
	Company           Company
	Members           []RoleClassification
	Excluded          []CandidatePerson
	CohesionScore     int // 0-100
	OverallConfidence int // 0-100
	TotalCost         int
	Strategy          EngagementStrategy
	Priority          GroupPriority
	AssembledAt       time.Time
}

// RunSummary is the structured report emitted after a batch run.
type RunSummary struct {
	RunID              string
	Companies          int
	CompaniesFailed    int
	PeopleDiscovered   int
	PeopleExcluded     int
	GroupsAssembled    int
	EmptyGroups        int
	TotalCredits       int
	CreditsByProvider  map[string]int
	Failures           []CompanyFailure
	StoppedCostCeiling bool
	StartedAt          time.Time
	FinishedAt         time.Time
}

// CompanyFailure records one company whose processing aborted.
type CompanyFailure struct {
	Company string
	Reason  string
}
