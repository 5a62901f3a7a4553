// Package app wires configuration into the runnable pipeline.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/lib/pq"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/discovery"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/enrich"
	"github.com/adrata/buyergroup/internal/infrastructure/metrics"
	"github.com/adrata/buyergroup/internal/infrastructure/providers"
	"github.com/adrata/buyergroup/internal/infrastructure/report"
	"github.com/adrata/buyergroup/internal/infrastructure/scheduler"
	"github.com/adrata/buyergroup/internal/infrastructure/storage"
	"github.com/adrata/buyergroup/internal/logging"
	"github.com/adrata/buyergroup/internal/ports"
	"github.com/adrata/buyergroup/internal/provider"
	"github.com/adrata/buyergroup/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	listener  *metrics.Listener
	companies []domain.Company
	db        *sql.DB
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.ForFormat(cfg.Logging.Format, cfg.Logging.Level)
	}

	registry := provider.NewRegistry()
	registry.Register(providers.NewCoresignal(cfg.Providers.Coresignal, cfg.Pipeline.CallTimeout))
	registry.Register(providers.NewBrightdata(cfg.Providers.Brightdata, cfg.Pipeline.CallTimeout))
	registry.Register(providers.NewContactout(cfg.Providers.Contactout, cfg.Pipeline.CallTimeout))
	registry.Register(providers.NewTeamPage(nil))

	for _, name := range priorityNames(cfg.Providers) {
		if _, err := registry.Resolve(name); err != nil {
			if errors.Is(err, provider.ErrDisabled) {
				baseLogger.Info("provider has no credential, skipped in waterfalls", "provider", name)
			} else {
				baseLogger.Warn("priority list names an unknown provider", "provider", name)
			}
		}
	}

	tracker := budget.NewTracker(ceilings(cfg.Budget), cfg.Budget.TotalCeiling)

	source := discovery.NewSource(registry, cfg.Providers.DiscoveryPriority, tracker,
		cfg.Pipeline.PageCap, baseLogger.With("component", "discovery"))
	waterfall := enrich.New(registry, cfg.Providers.EnrichmentPriority, tracker,
		cfg.Pipeline.InterCallDelay, baseLogger.With("component", "enrich"))

	var db *sql.DB
	if cfg.Database.DSN != "" {
		opened, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("database unavailable, persistence disabled", "error", err)
		} else {
			db = opened
		}
	}
	repository := storage.NewPostgresRepository(db)

	var reporter ports.Reporter = report.NewLogReporter(baseLogger.With("component", "report"))
	if cfg.Report.Telegram.BotToken != "" && cfg.Report.Telegram.ChatID != "" {
		reporter = report.NewTelegram(cfg.Report.Telegram.BotToken, cfg.Report.Telegram.ChatID)
	}

	promRegistry := prometheus.NewRegistry()
	counters := metrics.NewPrometheus(promRegistry)
	var listener *metrics.Listener
	if cfg.Metrics.ListenAddr != "" {
		listener = metrics.NewListener(cfg.Metrics.ListenAddr, promRegistry, baseLogger.With("component", "metrics"))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Enricher:   waterfall,
		Tracker:    tracker,
		Repository: repository,
		Reporter:   reporter,
		Metrics:    counters,
		Logger:     baseLogger.With("component", "pipeline"),
		Workers:    cfg.Pipeline.Workers,
	})

	companies := companiesFromConfig(cfg.Companies)
	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location())

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, tracker, companies),
		listener:  listener,
		companies: companies,
		db:        db,
	}
}

// Run performs a single batch over the configured companies.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}
	if a.listener != nil {
		a.listener.Start()
	}
	defer a.shutdown(ctx)

	groups, summary := a.pipeline.ProcessBatch(ctx, a.companies)
	a.logger.Info("batch finished",
		"run_id", summary.RunID,
		"groups", len(groups),
		"failed", summary.CompaniesFailed,
		"credits", summary.TotalCredits)
	return nil
}

// RunScheduled starts recurring batches and blocks until the context is
// cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if a.listener != nil {
		a.listener.Start()
	}
	defer a.shutdown(context.Background())

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

func (a *Application) shutdown(ctx context.Context) {
	if a.listener != nil {
		if err := a.listener.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics shutdown", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

func ceilings(cfg config.BudgetConfig) []budget.Ceiling {
	out := make([]budget.Ceiling, 0, len(cfg.Ceilings))
	for _, c := range cfg.Ceilings {
		out = append(out, budget.Ceiling{
			Provider:  c.Provider,
			Operation: domain.Operation(c.Operation),
			Limit:     c.Limit,
		})
	}
	return out
}

func priorityNames(cfg config.ProvidersConfig) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, name := range append(append([]string{}, cfg.DiscoveryPriority...), cfg.EnrichmentPriority...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func companiesFromConfig(cfgs []config.CompanyConfig) []domain.Company {
	out := make([]domain.Company, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, domain.Company{
			Name:        c.Name,
			Website:     c.Website,
			LinkedInURL: c.LinkedInURL,
		})
	}
	return out
}
