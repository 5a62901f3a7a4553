package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

// Contactout resolves contact fields from a LinkedIn profile URL or a
// name/domain pair. It is enrichment-only: search and collect always
// answer no-result so the discovery waterfall passes it over.
type Contactout struct {
	endpoint string
	apiKey   string
	cost     int
	http     *http.Client
}

var _ provider.Client = (*Contactout)(nil)

// NewContactout wires the client from provider configuration.
func NewContactout(cfg config.ProviderConfig, timeout time.Duration) *Contactout {
	return &Contactout{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		cost:     cfg.EnrichCost,
		http:     &http.Client{Timeout: timeout},
	}
}

// Name identifies the client inside the registry.
func (c *Contactout) Name() string {
	return "contactout"
}

// Enabled reports whether an API key is configured.
func (c *Contactout) Enabled() bool {
	return c.apiKey != ""
}

// Cost returns the configured credit price for one call. Search and
// collect are unsupported and free.
func (c *Contactout) Cost(op domain.Operation) int {
	if op == domain.OpEnrich {
		return c.cost
	}
	return 0
}

// Search is unsupported.
func (c *Contactout) Search(context.Context, provider.Query) ([]string, error) {
	return nil, provider.ErrNoResult
}

// Collect is unsupported.
func (c *Contactout) Collect(context.Context, string) (provider.Profile, error) {
	return provider.Profile{}, provider.ErrNoResult
}

// Enrich asks for emails and phones, preferring the LinkedIn profile
// lookup when a URL is known.
func (c *Contactout) Enrich(ctx context.Context, req provider.EnrichRequest) (provider.ContactFields, error) {
	query := url.Values{}
	path := "/people/search"
	if req.LinkedInURL != "" {
		path = "/people/linkedin"
		query.Set("profile", req.LinkedInURL)
	} else {
		if req.FullName == "" {
			return provider.ContactFields{}, provider.ErrNoResult
		}
		query.Set("name", req.FullName)
		if req.CanonicalDomain != "" {
			query.Set("company_domain", req.CanonicalDomain)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+query.Encode(), nil)
	if err != nil {
		return provider.ContactFields{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.ContactFields{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provider.ContactFields{}, provider.ErrNoResult
	case resp.StatusCode != http.StatusOK:
		return provider.ContactFields{}, &provider.UnavailableError{Provider: c.Name(), Status: resp.Status}
	}

	var out struct {
		Profile struct {
			Emails []string `json:"email"`
			Phones []string `json:"phone"`
		} `json:"profile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider.ContactFields{}, fmt.Errorf("decode response: %w", err)
	}

	fields := provider.ContactFields{}
	if len(out.Profile.Emails) > 0 {
		fields.Email = out.Profile.Emails[0]
	}
	if len(out.Profile.Phones) > 0 {
		fields.Phone = out.Profile.Phones[0]
	}
	if fields.Email == "" && fields.Phone == "" {
		return provider.ContactFields{}, provider.ErrNoResult
	}
	return fields, nil
}
