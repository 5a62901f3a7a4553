// Package metrics exposes pipeline counters over Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adrata/buyergroup/internal/ports"
	"github.com/adrata/buyergroup/pkg/logger"
)

// Prometheus implements ports.Metrics with counters registered on the
// given registerer.
type Prometheus struct {
	companies      *prometheus.CounterVec
	people         prometheus.Counter
	excluded       prometheus.Counter
	credits        *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the pipeline counters.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		companies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_companies_processed_total",
			Help: "Companies processed, by result.",
		}, []string{"result"}),
		people: factory.NewCounter(prometheus.CounterOpts{
			Name: "buyergroup_people_discovered_total",
			Help: "Candidate people discovered.",
		}),
		excluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "buyergroup_people_excluded_total",
			Help: "Candidates excluded by membership validation.",
		}),
		credits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_credits_spent_total",
			Help: "Provider credits spent.",
		}, []string{"provider"}),
		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_provider_errors_total",
			Help: "Provider calls that ended in an error.",
		}, []string{"provider"}),
	}
}

// CompanyProcessed counts one finished company.
func (p *Prometheus) CompanyProcessed(failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	p.companies.WithLabelValues(result).Inc()
}

// PeopleDiscovered counts discovered candidates.
func (p *Prometheus) PeopleDiscovered(n int) {
	p.people.Add(float64(n))
}

// PeopleExcluded counts excluded candidates.
func (p *Prometheus) PeopleExcluded(n int) {
	p.excluded.Add(float64(n))
}

// CreditsSpent counts provider credits.
func (p *Prometheus) CreditsSpent(provider string, n int) {
	p.credits.WithLabelValues(provider).Add(float64(n))
}

// ProviderError counts one failed provider call.
func (p *Prometheus) ProviderError(provider string) {
	p.providerErrors.WithLabelValues(provider).Inc()
}

// Listener serves /metrics on a dedicated address.
type Listener struct {
	server *http.Server
	logger *slog.Logger
}

// NewListener builds the metrics HTTP server for the given registry.
func NewListener(addr string, reg *prometheus.Registry, log *slog.Logger) *Listener {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Listener{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          logger.New("metrics"),
		},
		logger: log,
	}
}

// Start serves in the background until Shutdown.
func (l *Listener) Start() {
	go func() {
		if err := l.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if l.logger != nil {
				l.logger.Error("metrics listener stopped", "error", err)
			}
		}
	}()
}

// Shutdown stops the listener gracefully.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}
