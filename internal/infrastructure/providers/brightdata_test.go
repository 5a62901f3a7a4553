package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/provider"
)

func newTestBrightdata(serverURL string) *Brightdata {
	b := NewBrightdata(config.ProviderConfig{
		Endpoint:    serverURL,
		APIKey:      "key",
		DatasetID:   "ds1",
		SearchCost:  2,
		CollectCost: 1,
		EnrichCost:  2,
	}, 2*time.Second)
	b.pollInterval = time.Millisecond
	b.snapshotTimeout = 50 * time.Millisecond
	return b
}

func TestBrightdataSearchSnapshotNeverReady(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "s1"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b := newTestBrightdata(server.URL)

	done := make(chan error, 1)
	go func() {
		_, err := b.Search(context.Background(), provider.Query{CompanyName: "Acme"})
		done <- err
	}()

	select {
	case err := <-done:
		var unavailable *provider.UnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("expected UnavailableError, got %v", err)
		}
		if unavailable.Status != "snapshot timeout" {
			t.Fatalf("unexpected status: %s", unavailable.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Search did not return after the snapshot deadline")
	}
}

func TestBrightdataSearchReadyAfterPolling(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "s1"})
			return
		}
		if polls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(`[
			{"id": "r1", "name": "Jane Roe", "position": "CTO", "current_company_name": "Acme", "email": "jane@acme.com"},
			{"id": "r2", "name": "John Doe", "position": "VP Engineering", "current_company_name": "Acme"}
		]`))
	}))
	defer server.Close()

	b := newTestBrightdata(server.URL)

	ids, err := b.Search(context.Background(), provider.Query{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if got := polls.Load(); got < 3 {
		t.Fatalf("expected at least 3 snapshot polls, got %d", got)
	}

	profile, err := b.Collect(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if profile.FullName != "Jane Roe" || profile.Title != "CTO" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if len(profile.Emails) != 1 || profile.Emails[0] != "jane@acme.com" {
		t.Fatalf("unexpected emails: %v", profile.Emails)
	}
}

func TestBrightdataSearchCancelled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "s1"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b := newTestBrightdata(server.URL)
	b.snapshotTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := b.Search(ctx, provider.Query{CompanyName: "Acme"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
