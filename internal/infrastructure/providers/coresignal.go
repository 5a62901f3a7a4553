// Package providers contains the concrete vendor clients behind the
// uniform search/collect/enrich contract.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

const coresignalTimeLayout = "2006-01-02 15:04:05"

// Coresignal searches and collects employee records through the
// Coresignal company data API. Each id returned by search is collected
// individually and billed as a separate call.
type Coresignal struct {
	endpoint string
	apiKey   string
	costs    map[domain.Operation]int
	http     *http.Client
}

var _ provider.Client = (*Coresignal)(nil)

// NewCoresignal wires the client from provider configuration.
func NewCoresignal(cfg config.ProviderConfig, timeout time.Duration) *Coresignal {
	return &Coresignal{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		costs: map[domain.Operation]int{
			domain.OpSearch:  cfg.SearchCost,
			domain.OpCollect: cfg.CollectCost,
			domain.OpEnrich:  cfg.EnrichCost,
		},
		http: &http.Client{Timeout: timeout},
	}
}

// Name identifies the client inside the registry.
func (c *Coresignal) Name() string {
	return "coresignal"
}

// Enabled reports whether an API key is configured.
func (c *Coresignal) Enabled() bool {
	return c.apiKey != ""
}

// Cost returns the configured credit price for one call.
func (c *Coresignal) Cost(op domain.Operation) int {
	return c.costs[op]
}

// Search filters the employee dataset by current employer. The company
// name is quoted as an exact phrase so "Acme" does not match "Acme
// Holdings"; the domain narrows ambiguous names further.
func (c *Coresignal) Search(ctx context.Context, q provider.Query) ([]string, error) {
	name := q.CompanyName
	if q.ExactPhrase {
		name = strconv.Quote(q.CompanyName)
	}
	payload := map[string]any{
		"experience_company_name": name,
	}
	if q.CanonicalDomain != "" {
		payload["experience_company_website_url"] = q.CanonicalDomain
	}
	if q.LinkedInID != "" {
		payload["experience_company_linkedin_url"] = q.LinkedInID
	}

	var ids []int64
	if err := c.post(ctx, "/employee/search/filter", payload, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, provider.ErrNoResult
	}
	if q.PageCap > 0 && len(ids) > q.PageCap {
		ids = ids[:q.PageCap]
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out, nil
}

type coresignalEmployee struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	URL         string `json:"canonical_url"`
	LastUpdated string `json:"last_updated"`
	Emails      []struct {
		Email string `json:"professional_email"`
	} `json:"member_professional_emails"`
	Phones []struct {
		Phone string `json:"phone_number"`
	} `json:"member_phone_numbers"`
}

// Collect fetches one employee record by id.
func (c *Coresignal) Collect(ctx context.Context, id string) (provider.Profile, error) {
	var employee coresignalEmployee
	if err := c.get(ctx, "/employee/collect/"+id, &employee); err != nil {
		return provider.Profile{}, err
	}
	return employee.toProfile(), nil
}

// Enrich looks the person up by name within the company and returns the
// contact fields from the first matching record.
func (c *Coresignal) Enrich(ctx context.Context, req provider.EnrichRequest) (provider.ContactFields, error) {
	payload := map[string]any{
		"name": strconv.Quote(req.FullName),
	}
	if req.CanonicalDomain != "" {
		payload["experience_company_website_url"] = req.CanonicalDomain
	}
	if req.LinkedInURL != "" {
		payload["canonical_url"] = req.LinkedInURL
	}

	var ids []int64
	if err := c.post(ctx, "/employee/search/filter", payload, &ids); err != nil {
		return provider.ContactFields{}, err
	}
	if len(ids) == 0 {
		return provider.ContactFields{}, provider.ErrNoResult
	}

	profile, err := c.Collect(ctx, strconv.FormatInt(ids[0], 10))
	if err != nil {
		return provider.ContactFields{}, err
	}

	fields := provider.ContactFields{}
	if len(profile.Emails) > 0 {
		fields.Email = profile.Emails[0]
	}
	if len(profile.Phones) > 0 {
		fields.Phone = profile.Phones[0]
	}
	if fields.Email == "" && fields.Phone == "" {
		return provider.ContactFields{}, provider.ErrNoResult
	}
	return fields, nil
}

func (e coresignalEmployee) toProfile() provider.Profile {
	profile := provider.Profile{
		ExternalSourceID: strconv.FormatInt(e.ID, 10),
		FullName:         e.Name,
		Title:            e.Title,
		CompanyName:      e.CompanyName,
		LinkedInURL:      e.URL,
	}
	if e.ID == 0 {
		profile.ExternalSourceID = ""
	}
	for _, email := range e.Emails {
		if email.Email != "" {
			profile.Emails = append(profile.Emails, email.Email)
		}
	}
	for _, phone := range e.Phones {
		if phone.Phone != "" {
			profile.Phones = append(profile.Phones, phone.Phone)
		}
	}
	if parsed, err := time.Parse(coresignalTimeLayout, e.LastUpdated); err == nil {
		profile.LastUpdated = parsed
	}
	return profile
}

func (c *Coresignal) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, v)
}

func (c *Coresignal) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, v)
}

func (c *Coresignal) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provider.ErrNoResult
	case resp.StatusCode != http.StatusOK:
		return &provider.UnavailableError{Provider: c.Name(), Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
