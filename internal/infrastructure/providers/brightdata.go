package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

const (
	brightdataPollInterval    = 5 * time.Second
	brightdataSnapshotTimeout = 2 * time.Minute
)

// Brightdata filters a people dataset snapshot by current employer. The
// API is asynchronous: a filter request returns a snapshot id which is
// polled until the snapshot is ready, then downloaded in one piece.
// Collected records are cached per snapshot so collect calls after a
// search stay local.
type Brightdata struct {
	endpoint        string
	apiKey          string
	datasetID       string
	costs           map[domain.Operation]int
	http            *http.Client
	pollInterval    time.Duration
	snapshotTimeout time.Duration

	mu    sync.Mutex
	cache map[string]provider.Profile
}

var _ provider.Client = (*Brightdata)(nil)

// NewBrightdata wires the client from provider configuration.
func NewBrightdata(cfg config.ProviderConfig, timeout time.Duration) *Brightdata {
	return &Brightdata{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		datasetID: cfg.DatasetID,
		costs: map[domain.Operation]int{
			domain.OpSearch:  cfg.SearchCost,
			domain.OpCollect: cfg.CollectCost,
			domain.OpEnrich:  cfg.EnrichCost,
		},
		http:            &http.Client{Timeout: timeout},
		pollInterval:    brightdataPollInterval,
		snapshotTimeout: brightdataSnapshotTimeout,
		cache:           map[string]provider.Profile{},
	}
}

// Name identifies the client inside the registry.
func (b *Brightdata) Name() string {
	return "brightdata"
}

// Enabled reports whether an API key is configured.
func (b *Brightdata) Enabled() bool {
	return b.apiKey != "" && b.datasetID != ""
}

// Cost returns the configured credit price for one call.
func (b *Brightdata) Cost(op domain.Operation) int {
	return b.costs[op]
}

type brightdataRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Position       string `json:"position"`
	CurrentCompany string `json:"current_company_name"`
	URL            string `json:"url"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Timestamp      string `json:"timestamp"`
}

// Search triggers a snapshot filtered by current company and returns the
// record ids once the snapshot is ready.
func (b *Brightdata) Search(ctx context.Context, q provider.Query) ([]string, error) {
	filter := map[string]any{
		"name":     "current_company_name",
		"operator": "=",
		"value":    q.CompanyName,
	}

	records, err := b.filterSnapshot(ctx, filter, q.PageCap)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, provider.ErrNoResult
	}

	ids := make([]string, 0, len(records))
	b.mu.Lock()
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		b.cache[rec.ID] = rec.toProfile()
		ids = append(ids, rec.ID)
	}
	b.mu.Unlock()
	return ids, nil
}

// Collect serves a record previously downloaded with the snapshot. The
// snapshot download is billed once at search time; a collect outside the
// cached snapshot has no record to return.
func (b *Brightdata) Collect(_ context.Context, id string) (provider.Profile, error) {
	b.mu.Lock()
	profile, ok := b.cache[id]
	b.mu.Unlock()
	if !ok {
		return provider.Profile{}, provider.ErrNoResult
	}
	return profile, nil
}

// Enrich filters the dataset by person name and returns contact fields
// from the first record matching the company domain.
func (b *Brightdata) Enrich(ctx context.Context, req provider.EnrichRequest) (provider.ContactFields, error) {
	filter := map[string]any{
		"name":     "name",
		"operator": "=",
		"value":    req.FullName,
	}

	records, err := b.filterSnapshot(ctx, filter, 10)
	if err != nil {
		return provider.ContactFields{}, err
	}

	for _, rec := range records {
		if rec.Email == "" && rec.Phone == "" {
			continue
		}
		return provider.ContactFields{Email: rec.Email, Phone: rec.Phone}, nil
	}
	return provider.ContactFields{}, provider.ErrNoResult
}

func (r brightdataRecord) toProfile() provider.Profile {
	profile := provider.Profile{
		ExternalSourceID: r.ID,
		FullName:         r.Name,
		Title:            r.Position,
		CompanyName:      r.CurrentCompany,
		LinkedInURL:      r.URL,
	}
	if r.Email != "" {
		profile.Emails = []string{r.Email}
	}
	if r.Phone != "" {
		profile.Phones = []string{r.Phone}
	}
	if parsed, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
		profile.LastUpdated = parsed
	}
	return profile
}

// filterSnapshot runs the trigger/poll/download cycle for one filter.
// The whole cycle is bounded by the snapshot timeout: a snapshot that
// never becomes ready is reported unavailable, it never blocks the run.
func (b *Brightdata) filterSnapshot(ctx context.Context, filter map[string]any, recordsLimit int) ([]brightdataRecord, error) {
	waitCtx, cancel := context.WithTimeout(ctx, b.snapshotTimeout)
	defer cancel()

	snapshotID, err := b.trigger(waitCtx, filter, recordsLimit)
	if err != nil {
		return nil, b.timeoutErr(ctx, waitCtx, err)
	}

	for {
		records, ready, err := b.download(waitCtx, snapshotID)
		if err != nil {
			return nil, b.timeoutErr(ctx, waitCtx, err)
		}
		if ready {
			return records, nil
		}

		timer := time.NewTimer(b.pollInterval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, b.timeoutErr(ctx, waitCtx, waitCtx.Err())
		case <-timer.C:
		}
	}
}

// timeoutErr maps an expired snapshot deadline to UnavailableError while
// passing caller cancellation and every other failure through unchanged.
func (b *Brightdata) timeoutErr(ctx, waitCtx context.Context, err error) error {
	if waitCtx.Err() != nil && ctx.Err() == nil {
		return &provider.UnavailableError{Provider: b.Name(), Status: "snapshot timeout"}
	}
	return err
}

func (b *Brightdata) trigger(ctx context.Context, filter map[string]any, recordsLimit int) (string, error) {
	payload := map[string]any{
		"dataset_id": b.datasetID,
		"filter":     filter,
	}
	if recordsLimit > 0 {
		payload["records_limit"] = recordsLimit
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal filter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/filter?dataset_id=%s", b.endpoint, url.QueryEscape(b.datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &provider.UnavailableError{Provider: b.Name(), Status: resp.Status}
	}

	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode trigger response: %w", err)
	}
	if out.SnapshotID == "" {
		return "", fmt.Errorf("trigger returned no snapshot id")
	}
	return out.SnapshotID, nil
}

// download returns ready=false while the snapshot is still building.
func (b *Brightdata) download(ctx context.Context, snapshotID string) ([]brightdataRecord, bool, error) {
	endpoint := fmt.Sprintf("%s/snapshot/%s?format=json", b.endpoint, url.PathEscape(snapshotID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return nil, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, provider.ErrNoResult
	case resp.StatusCode != http.StatusOK:
		return nil, false, &provider.UnavailableError{Provider: b.Name(), Status: resp.Status}
	}

	var records []brightdataRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, true, nil
}
