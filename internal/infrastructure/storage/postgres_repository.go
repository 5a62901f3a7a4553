// Package storage persists companies, people, attempts and assembled
// groups into Postgres.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/ports"
)

// PostgresRepository implements ports.Repository on database/sql.
// Companies and people are idempotent upserts keyed by stable external
// identifiers; attempts and groups are append-only.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// UpsertCompany writes the company keyed by canonical domain. Reruns
// update mutable fields, never duplicate rows.
func (r *PostgresRepository) UpsertCompany(ctx context.Context, company domain.Company) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("companies").
		Columns("canonical_domain", "name", "website", "linkedin_url").
		Values(company.CanonicalDomain, company.Name, company.Website, company.LinkedInURL).
		Suffix(`ON CONFLICT (canonical_domain) DO UPDATE
			SET name = EXCLUDED.name,
			    website = EXCLUDED.website,
			    linkedin_url = EXCLUDED.linkedin_url,
			    updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build company upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	return nil
}

// UpsertPerson writes the person keyed by external source id.
func (r *PostgresRepository) UpsertPerson(ctx context.Context, company domain.Company, person domain.CandidatePerson) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("people").
		Columns("external_id", "company_domain", "full_name", "title", "company_name",
			"emails", "phones", "linkedin_url", "last_updated", "excluded", "exclusion_reason").
		Values(person.ExternalSourceID, company.CanonicalDomain, person.FullName, person.Title,
			person.CompanyName, pq.StringArray(person.EmailCandidates), pq.StringArray(person.PhoneCandidates),
			person.LinkedInURL, nullableTime(person), person.Excluded, string(person.ExclusionReason)).
		Suffix(`ON CONFLICT (external_id) DO UPDATE
			SET full_name = EXCLUDED.full_name,
			    title = EXCLUDED.title,
			    company_name = EXCLUDED.company_name,
			    emails = EXCLUDED.emails,
			    phones = EXCLUDED.phones,
			    linkedin_url = EXCLUDED.linkedin_url,
			    last_updated = EXCLUDED.last_updated,
			    excluded = EXCLUDED.excluded,
			    exclusion_reason = EXCLUDED.exclusion_reason,
			    updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build person upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

// AlreadyEnriched returns the ids whose stored records already carry an
// email or phone, so enrichment is never re-billed for them.
func (r *PostgresRepository) AlreadyEnriched(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT external_id FROM people
	          WHERE external_id = ANY($1)
	            AND (cardinality(emails) > 0 OR cardinality(phones) > 0)`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query enriched: %w", err)
	}

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// AppendAttempt inserts one audit trail entry. Attempts are never
// updated or deleted.
func (r *PostgresRepository) AppendAttempt(ctx context.Context, runID string, company domain.Company, attempt domain.EnrichmentAttempt) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("enrichment_attempts").
		Columns("run_id", "company_domain", "person_id", "provider", "operation", "outcome", "credit_cost", "attempted_at").
		Values(runID, company.CanonicalDomain, attempt.PersonID, attempt.Provider,
			string(attempt.Operation), string(attempt.Outcome), attempt.CreditCost, attempt.At).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attempt insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// SaveBuyerGroup inserts the assembled group snapshot with members and
// exclusions serialized as JSON.
func (r *PostgresRepository) SaveBuyerGroup(ctx context.Context, group domain.BuyerGroup) error {
	if r.db == nil {
		return nil
	}

	members, err := json.Marshal(group.Members)
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	excluded, err := json.Marshal(group.Excluded)
	if err != nil {
		return fmt.Errorf("marshal excluded: %w", err)
	}

	query, args, err := r.builder.
		Insert("buyer_groups").
		Columns("run_id", "company_domain", "company_name", "members", "excluded",
			"cohesion_score", "overall_confidence", "total_cost", "strategy", "priority", "assembled_at").
		Values(group.RunID, group.Company.CanonicalDomain, group.Company.Name, members, excluded,
			group.CohesionScore, group.OverallConfidence, group.TotalCost,
			string(group.Strategy), string(group.Priority), group.AssembledAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build group insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save buyer group: %w", err)
	}
	return nil
}

func nullableTime(person domain.CandidatePerson) any {
	if person.LastUpdated.IsZero() {
		return nil
	}
	return person.LastUpdated
}
