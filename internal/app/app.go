// Package app wires configuration into a ready-to-run sync service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/dedup"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/export"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/llm"
	"github.com/joseph-ayodele/purchase-sync/internal/llm/anthropic"
	"github.com/joseph-ayodele/purchase-sync/internal/llm/openai"
	"github.com/joseph-ayodele/purchase-sync/internal/mailbox"
	"github.com/joseph-ayodele/purchase-sync/internal/materialize"
	"github.com/joseph-ayodele/purchase-sync/internal/merchant"
	"github.com/joseph-ayodele/purchase-sync/internal/notify"
	"github.com/joseph-ayodele/purchase-sync/internal/pipeline"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

type Options struct {
	// InMemory uses a throwaway SQLite database instead of DB_URL.
	InMemory bool
	// SQLitePath uses a SQLite file instead of DB_URL.
	SQLitePath string
	// Mailbox overrides the .eml directory mailbox.
	Mailbox mailbox.Mailbox
	// Provider overrides the configured LLM provider.
	Provider llm.Provider
}

// App owns every long-lived dependency of a sync process.
type App struct {
	Config   *common.Config
	DB       *repository.DB
	Store    repository.Store
	Provider llm.Provider
	Service  *pipeline.Service
	Export   *export.Service

	publisher *notify.AMQPPublisher
	rdb       *redis.Client
	logger    *slog.Logger
}

// Build opens the database, migrates and seeds it, and assembles the pipeline.
// Redis and RabbitMQ are optional; a failed connection to either is logged
// and the feature is disabled.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	db, err := openDB(ctx, cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := db.Migrate(ctx, logger); err != nil {
		a.Close()
		return nil, err
	}
	a.Store = repository.NewStore(db, logger)
	if err := repository.SeedMerchantDefaults(ctx, a.Store, merchantSeeds(cfg)); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed merchant defaults: %w", err)
	}

	a.Provider = opts.Provider
	if a.Provider == nil {
		a.Provider = NewProvider(cfg.LLM, logger)
	}
	var vopts []extraction.ValidatorOption
	vopts = append(vopts, extraction.WithValidatorLogger(logger))
	if cfg.LLM.Strict {
		vopts = append(vopts, extraction.WithStrictSchema())
	}
	validator, err := extraction.NewValidator(vopts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	orch := extraction.NewOrchestrator(a.Provider, validator, extraction.Config{
		MaxRetries: cfg.LLM.MaxRetries,
		MaxTokens:  cfg.LLM.MaxTokens,
	}, logger)

	matOpts := []materialize.Option{materialize.WithLogger(logger)}
	if cfg.AMQP.URL != "" {
		pub, err := notify.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("app.amqp.disabled", "error", err)
		} else {
			a.publisher = pub
			matOpts = append(matOpts, materialize.WithPublisher(pub))
		}
	}

	var claimer dedup.Claimer = dedup.Noop{}
	if cfg.Redis.Addr != "" {
		a.rdb = dedup.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		claimer = dedup.NewRedisClaimer(a.rdb, cfg.Redis.ClaimTTL, logger)
		logger.Info("app.redis.enabled", "addr", cfg.Redis.Addr)
	}

	mb := opts.Mailbox
	if mb == nil {
		mb = mailbox.NewDir(cfg.Sync.MailboxDir, logger)
	}

	a.Service = pipeline.NewService(pipeline.Deps{
		Mailbox:      mb,
		Store:        a.Store,
		Preparer:     pipeline.NewPreparer(merchant.NewResolver(cfg.KnownMerchantDomains)),
		Extractor:    orch,
		Materializer: materialize.New(a.Store, matOpts...),
		Claimer:      claimer,
	}, pipeline.Config{
		MaxMessages:  cfg.Sync.MaxMessages,
		Concurrency:  cfg.Sync.Concurrency,
		ProviderName: a.Provider.Name(),
	}, logger)
	a.Export = export.NewService(a.Store, logger)

	logger.Info("app.ready", "dialect", db.Dialect, "provider", a.Provider.Name(), "mailbox_dir", cfg.Sync.MailboxDir)
	return a, nil
}

func openDB(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*repository.DB, error) {
	switch {
	case opts.InMemory:
		return repository.OpenSQLite(ctx, ":memory:", logger)
	case opts.SQLitePath != "":
		return repository.OpenSQLite(ctx, "file:"+opts.SQLitePath+"?_pragma=busy_timeout(5000)", logger)
	}
	return repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
}

// NewProvider returns the chat client selected by cfg.Provider.
func NewProvider(cfg common.LLMConfig, logger *slog.Logger) llm.Provider {
	if cfg.Provider == "anthropic" {
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			MaxRetries:  2,
		}, logger)
	}
	return openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}, logger)
}

func merchantSeeds(cfg *common.Config) []entity.MerchantDefaults {
	out := make([]entity.MerchantDefaults, 0, len(cfg.MerchantDefaults))
	for _, s := range cfg.MerchantDefaults {
		out = append(out, entity.MerchantDefaults{
			MerchantNamePattern:   s.Pattern,
			DefaultWarrantyMonths: s.WarrantyMonths,
			DefaultReturnDays:     s.ReturnDays,
		})
	}
	return out
}

// HealthCheck pings the database and, when configured, redis.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.DB.HealthCheck(ctx, 0, a.logger); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("app.redis.close_failed", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close(a.logger)
	}
}
