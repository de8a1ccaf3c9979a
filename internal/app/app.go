// Package app wires configuration into the components every binary shares.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"avt-guide/internal/analytics"
	"avt-guide/internal/assistant"
	"avt-guide/internal/auth"
	"avt-guide/internal/catalog"
	"avt-guide/internal/config"
	"avt-guide/internal/expander"
	"avt-guide/internal/fanout"
	"avt-guide/internal/llm"
	"avt-guide/internal/metrics"
	"avt-guide/internal/prompt"
	"avt-guide/internal/scheduler"
	"avt-guide/internal/storage"
)

// Search is the catalog half of the system: enough for the MCP server.
type Search struct {
	Catalog  *catalog.Client
	Expander *expander.Expander
	Fanout   *fanout.Fanout
}

// NewSearch builds the catalog client, the keyword expander and the fan-out.
// A lexicon file that cannot be read falls back to the built-in tables.
func NewSearch(cfg *config.Config, m *metrics.Metrics, log logrus.FieldLogger) *Search {
	cat := catalog.New(cfg.CatalogBaseURL,
		catalog.WithRateLimit(cfg.CatalogRPS),
		catalog.WithCategoryTTL(cfg.CategoryCacheTTL),
		catalog.WithLogger(log.WithField("component", "catalog")),
	)

	lex := expander.DefaultLexicon()
	if cfg.LexiconPath != "" {
		loaded, err := expander.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			log.WithError(err).WithField("path", cfg.LexiconPath).Warn("app: lexicon not loaded, using built-in tables")
		} else {
			lex = loaded
		}
	}

	opts := []fanout.Option{
		fanout.WithTimeout(cfg.SearchTimeout),
		fanout.WithLogger(log.WithField("component", "fanout")),
	}
	if m != nil {
		opts = append(opts, fanout.WithObserver(m))
	}
	return &Search{
		Catalog:  cat,
		Expander: expander.New(lex),
		Fanout:   fanout.New(cat, opts...),
	}
}

// App holds the assembled service.
type App struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
	Search    *Search
	Recorder  storage.Recorder
	Operators *auth.Service
	Manager   *assistant.Manager

	closers []io.Closer
}

// Build assembles the app. model may be nil, in which case one is created
// from the configured provider.
func Build(cfg *config.Config, log logrus.FieldLogger, model llm.Client) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	a.Search = NewSearch(cfg, a.Metrics, log)

	if model == nil {
		var err error
		model, err = llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
	}

	rules := ""
	if cfg.SystemPromptPath != "" {
		r, err := prompt.LoadRules(cfg.SystemPromptPath)
		if err != nil {
			log.WithError(err).Warn("app: system prompt not loaded, using default rules")
		} else {
			rules = r
		}
	}

	durable, err := a.openDurable()
	if err != nil {
		return nil, err
	}

	if cfg.LogFilePath != "" {
		rec, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.WithError(err).Warn("app: interaction log disabled")
		} else {
			a.Recorder = rec
		}
	}

	a.Operators, err = auth.NewWithRepo(auth.NewKVRepo(durable), cfg.TelegramAdminIDs)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load operators: %w", err)
	}

	deps := &assistant.Deps{
		LLM:           model,
		Prompt:        prompt.NewBuilder(rules),
		Expander:      a.Search.Expander,
		Search:        a.Search.Fanout,
		Categories:    a.Search.Catalog,
		Recorder:      a.Recorder,
		Metrics:       a.Metrics,
		Log:           log.WithField("component", "assistant"),
		LLMTimeout:    cfg.LLMTimeout,
		DefaultLocale: cfg.DefaultLocale,
	}
	a.Manager = assistant.NewManager(deps, storage.NewMemoryKV(cfg.SessionTTL), durable, assistant.ManagerOptions{
		SessionTTL:    cfg.SessionTTL,
		DailyLimit:    cfg.DailyLimit,
		QuotaLocation: cfg.Location(),
	})
	return a, nil
}

func (a *App) openDurable() (storage.KV, error) {
	switch a.Config.StorageDriver {
	case config.StorageMemory:
		return storage.NewMemoryKV(0), nil
	case config.StorageSQLite:
		kv, err := storage.NewSQLiteKV(a.Config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		a.closers = append(a.closers, kv)
		return kv, nil
	case config.StorageFile, "":
		kv, err := storage.NewFileKV(a.Config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", a.Config.StorageDriver)
	}
}

// DailyReport summarizes the interaction log for the day containing at.
func (a *App) DailyReport(at time.Time) (*analytics.DailyStats, error) {
	if a.Recorder == nil {
		return nil, errors.New("interaction log disabled")
	}
	events, err := a.Recorder.LoadInteractions()
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	return analytics.AnalyzeDailyLogs(events, at.In(a.Config.Location())), nil
}

// Scheduler registers the daily report and the category refresh. notify,
// when set, receives the rendered report.
func (a *App) Scheduler(notify func(string)) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Config.Location(), a.Log.WithField("component", "scheduler"))
	if a.Recorder != nil {
		err := s.Register(a.Config.ReportCron, "daily_report", func(ctx context.Context) error {
			stats, err := a.DailyReport(time.Now())
			if err != nil {
				return err
			}
			summary := stats.GenerateReportSummary()
			a.Log.WithFields(logrus.Fields{"date": stats.Date, "turns": stats.TotalTurns}).Info("daily report generated")
			if notify != nil {
				notify(summary)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if a.Config.CatalogBaseURL != "" {
		err := s.Register(a.Config.CategoryRefreshCron, "category_refresh", func(ctx context.Context) error {
			_, err := a.Search.Catalog.RefreshCategories(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
