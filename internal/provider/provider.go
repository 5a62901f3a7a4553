// Package provider defines the uniform three-verb contract every external
// data vendor is wrapped in, and a registry resolving configured priority
// order to concrete clients.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
)

// ErrNoResult means the provider answered but had no match. Terminal for
// that lookup; never retried.
var ErrNoResult = errors.New("provider: no result")

// ErrDisabled means the provider has no credential configured. A normal
// configuration state, not a failure.
var ErrDisabled = errors.New("provider: disabled")

// UnavailableError is a non-success status from a provider call. The
// caller logs it and falls through to the next provider; calls are billed
// per attempt, so nothing retries automatically.
type UnavailableError struct {
	Provider string
	Status   string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %s", e.Provider, e.Status)
}

// Query describes a people search for one company. Boosted searches quote
// the company name as an exact phrase rather than loose tokens.
type Query struct {
	CompanyName     string
	CanonicalDomain string
	LinkedInID      string
	ExactPhrase     bool
	PageCap         int
}

// Profile is the collected person record in provider-neutral form.
type Profile struct {
	ExternalSourceID string
	FullName         string
	Title            string
	CompanyName      string
	Emails           []string
	Phones           []string
	LinkedInURL      string
	LastUpdated      time.Time
}

// EnrichRequest asks for contact fields by person identity or domain.
type EnrichRequest struct {
	FullName        string
	CanonicalDomain string
	LinkedInURL     string
}

// ContactFields carries whatever the provider could fill.
type ContactFields struct {
	Email string
	Phone string
}

// Client is the uniform request/response boundary around one vendor. The
// pipeline treats all providers identically through these three verbs.
// Every call carries a timeout via ctx and fails without retrying.
type Client interface {
	Name() string
	// Enabled reports whether a credential is present. Disabled providers
	// are skipped silently during waterfalls.
	Enabled() bool
	// Cost returns the credit price of one call of the given operation.
	Cost(op domain.Operation) int
	Search(ctx context.Context, q Query) ([]string, error)
	Collect(ctx context.Context, id string) (Profile, error)
	Enrich(ctx context.Context, req EnrichRequest) (ContactFields, error)
}

// Registry keeps a mapping from provider names to their clients.
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

// Register adds or replaces a provider client.
func (r *Registry) Register(client Client) {
	if r.clients == nil {
		r.clients = map[string]Client{}
	}
	r.clients[client.Name()] = client
}

// Resolve returns the client registered under name. A registered client
// without a credential resolves to ErrDisabled, so callers can tell a
// configuration gap from a typo in a priority list.
func (r *Registry) Resolve(name string) (Client, error) {
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider %s is not registered", name)
	}
	if !client.Enabled() {
		return nil, fmt.Errorf("provider %s: %w", name, ErrDisabled)
	}
	return client, nil
}

// Waterfall resolves the configured priority order to enabled clients,
// preserving order and skipping unknown or disabled entries.
func (r *Registry) Waterfall(priority []string) []Client {
	ordered := make([]Client, 0, len(priority))
	for _, name := range priority {
		client, ok := r.clients[name]
		if !ok || !client.Enabled() {
			continue
		}
		ordered = append(ordered, client)
	}
	return ordered
}
