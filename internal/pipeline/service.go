package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/dedup"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/mailbox"
	"github.com/joseph-ayodele/purchase-sync/internal/materialize"
	"github.com/joseph-ayodele/purchase-sync/internal/metrics"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

// Extractor is the LLM stage. *extraction.Orchestrator implements it.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (extraction.Outcome, error)
}

type Config struct {
	MaxMessages  int // per user and run, default 50
	Concurrency  int // users synced in parallel, default 4
	ProviderName string
}

type Service struct {
	mailbox      mailbox.Mailbox
	store        repository.Store
	preparer     *Preparer
	extractor    Extractor
	materializer *materialize.Materializer
	claimer      dedup.Claimer
	cfg          Config
	logger       *slog.Logger
}

type Deps struct {
	Mailbox      mailbox.Mailbox
	Store        repository.Store
	Preparer     *Preparer
	Extractor    Extractor
	Materializer *materialize.Materializer
	Claimer      dedup.Claimer
}

func NewService(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "unknown"
	}
	if deps.Preparer == nil {
		deps.Preparer = NewPreparer(nil)
	}
	if deps.Claimer == nil {
		deps.Claimer = dedup.Noop{}
	}
	if deps.Materializer == nil {
		deps.Materializer = materialize.New(deps.Store, materialize.WithLogger(logger))
	}
	return &Service{
		mailbox:      deps.Mailbox,
		store:        deps.Store,
		preparer:     deps.Preparer,
		extractor:    deps.Extractor,
		materializer: deps.Materializer,
		claimer:      deps.Claimer,
		cfg:          cfg,
		logger:       logger,
	}
}

// SyncUser processes up to MaxMessages new messages received since since,
// newest first. Per-message failures land in the report; the returned error
// is reserved for listing failures and cancellation.
func (s *Service) SyncUser(ctx context.Context, userID string, since time.Time) (Report, error) {
	ctx = common.WithUserID(ctx, userID)
	report := Report{UserID: userID}
	start := time.Now()
	log := s.logger.With("user_id", userID)
	log.Info("sync.start", "since", since)

	refs, err := s.mailbox.List(ctx, userID, since)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		log.Error("sync.list_failed", "error", err)
		return report, fmt.Errorf("list mailbox: %w", err)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			log.Warn("sync.cancelled", "processed", report.Processed())
			metrics.SyncRuns.WithLabelValues("cancelled").Inc()
			return report, err
		}
		if report.Processed() >= s.cfg.MaxMessages {
			log.Info("sync.batch_limit", "limit", s.cfg.MaxMessages)
			break
		}

		prior, err := s.store.FindProcessedEmail(ctx, userID, ref.ID)
		if err != nil {
			report.fail(ref.ID, err)
			continue
		}
		if prior != nil {
			report.Skipped++
			continue
		}
		if !s.claimer.Claim(ctx, userID, ref.ID) {
			report.Skipped++
			continue
		}

		out, err := s.syncMessage(ctx, userID, ref)
		s.claimer.Release(ctx, userID, ref.ID)
		if err != nil {
			report.fail(ref.ID, err)
			metrics.MessagesProcessed.WithLabelValues(string(constants.ResultFailed)).Inc()
			continue
		}
		report.tally(out)
		metrics.MessagesProcessed.WithLabelValues(string(out.Result)).Inc()
		metrics.PurchasesCreated.Add(float64(len(out.Purchases)))
	}

	status := "ok"
	if len(report.Errors) > 0 {
		status = "partial"
	}
	metrics.SyncRuns.WithLabelValues(status).Inc()
	log.Info("sync.done",
		"synced", report.Synced,
		"ignored", report.Ignored,
		"not_order", report.NotOrder,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (s *Service) syncMessage(ctx context.Context, userID string, ref entity.MessageRef) (materialize.Outcome, error) {
	ctx = common.WithMessageID(ctx, ref.ID)
	msg, err := s.mailbox.Fetch(ctx, userID, ref.ID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return materialize.Outcome{}, err
		}
		s.logger.Warn("sync.message.fetch_failed", "user_id", userID, "email_id", ref.ID, "error", err)
		s.recordFailure(ctx, userID, entity.RawEmailMessage{ID: ref.ID}, err)
		return materialize.Outcome{}, fmt.Errorf("fetch: %w", err)
	}
	if msg.ID == "" {
		msg.ID = ref.ID
	}
	return s.ProcessMessage(ctx, userID, msg, "")
}

// ProcessMessage runs one already-fetched message through every stage and
// records exactly one ledger row for it. explicitMerchant, when set, is used
// as the authoritative merchant hint.
func (s *Service) ProcessMessage(ctx context.Context, userID string, msg entity.RawEmailMessage, explicitMerchant string) (materialize.Outcome, error) {
	log := s.logger.With("user_id", userID, "email_id", msg.ID)

	prepared := s.preparer.Prepare(msg, explicitMerchant)
	log.Debug("sync.message.prepared",
		"language", prepared.Language,
		"amounts", len(prepared.Amounts),
		"tables", len(prepared.Normalized.Tables),
		"has_hint", prepared.Hint != nil,
	)

	started := time.Now()
	extracted, err := s.extractor.Extract(ctx, prepared.Request())
	metrics.ObserveExtraction(s.cfg.ProviderName, started, extracted.Attempts, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return materialize.Outcome{}, err
		}
		log.Error("sync.message.failed", "stage", "extract", "attempts", extracted.Attempts, "error", err)
		s.recordFailure(ctx, userID, msg, err)
		return materialize.Outcome{}, err
	}

	out, err := s.materializer.Materialize(ctx, materialize.Input{UserID: userID, Message: msg, Result: extracted.Result})
	if err != nil {
		log.Error("sync.message.failed", "stage", "materialize", "error", err)
		s.recordFailure(ctx, userID, msg, err)
		return materialize.Outcome{}, err
	}
	log.Info("sync.message.ok", "result", out.Result, "purchases", len(out.Purchases))
	return out, nil
}

func (s *Service) recordFailure(ctx context.Context, userID string, msg entity.RawEmailMessage, cause error) {
	if err := s.materializer.RecordFailure(ctx, userID, msg, cause); err != nil {
		s.logger.Error("sync.message.record_failed", "user_id", userID, "email_id", msg.ID, "error", err)
	}
}

// SyncUsers syncs users concurrently, at most Concurrency at a time. Reports
// are returned in the order of users; the error joins listing failures.
func (s *Service) SyncUsers(ctx context.Context, users []string, since time.Time) ([]Report, error) {
	reports := make([]Report, len(users))
	errs := make([]error, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, userID := range users {
		g.Go(func() error {
			r, err := s.SyncUser(gctx, userID, since)
			reports[i] = r
			if err != nil {
				errs[i] = fmt.Errorf("user %s: %w", userID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}
