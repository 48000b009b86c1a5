// Package materialize turns accepted extractions into purchase, notification
// and ledger rows.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

const (
	DefaultWarrantyMonths = 12
	DefaultReturnDays     = 30
	daysPerMonth          = 30
)

// Publisher fans a created notification out to other systems. Failures are
// logged and never undo the persisted rows.
type Publisher interface {
	PublishPurchaseDetected(ctx context.Context, n entity.Notification, p entity.Purchase) error
}

// Input is one accepted extraction together with its source message.
type Input struct {
	UserID  string
	Message entity.RawEmailMessage
	Result  extraction.Result
}

// Outcome reports what was recorded for the message.
type Outcome struct {
	Result constants.ProcessedResult
	// PurchaseID is the first created purchase, or the existing one on a duplicate.
	PurchaseID *uuid.UUID
	Purchases  []*entity.Purchase
}

type Materializer struct {
	store     repository.Store
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Materializer)

func WithPublisher(p Publisher) Option {
	return func(m *Materializer) { m.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

func New(store repository.Store, opts ...Option) *Materializer {
	m := &Materializer{store: store, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

var errAlreadyRecorded = errors.New("message already recorded")

// Eligible reports whether an extraction may produce purchase rows.
func Eligible(r extraction.Result) bool {
	return r.IsPurchase &&
		r.EmailType != constants.EmailUnknown &&
		utf8.RuneCountInString(strings.TrimSpace(r.MerchantName)) > 1
}

// Materialize records the outcome for in.Message. A message that already has
// a ledger row is reported as ignored and nothing is written.
func (m *Materializer) Materialize(ctx context.Context, in Input) (Outcome, error) {
	log := m.logger.With("user_id", in.UserID, "email_id", in.Message.ID)

	if prior, err := m.store.FindProcessedEmail(ctx, in.UserID, in.Message.ID); err != nil {
		return Outcome{}, err
	} else if prior != nil {
		log.Info("materialize.already_processed", "result", prior.Result)
		return Outcome{Result: constants.ResultIgnored, PurchaseID: prior.PurchaseID}, nil
	}

	if !in.Result.IsPurchase {
		return m.record(ctx, in, constants.ResultNotOrder, nil, nil)
	}
	if !Eligible(in.Result) {
		log.Info("materialize.ineligible", "email_type", in.Result.EmailType, "merchant", in.Result.MerchantName)
		return m.record(ctx, in, constants.ResultIgnored, nil, nil)
	}

	var (
		out     Outcome
		created []createdPurchase
	)
	err := m.store.InTx(ctx, func(tx repository.Store) error {
		if order := orderNumber(in.Result); order != "" {
			existing, err := tx.FindPurchaseByOrderNumber(ctx, in.UserID, order)
			if err != nil {
				return err
			}
			if existing != nil {
				log.Info("materialize.duplicate_order", "order_number", order, "purchase_id", existing.ID)
				id := existing.ID
				out = Outcome{Result: constants.ResultIgnored, PurchaseID: &id}
				return m.insertLedger(ctx, tx, in, constants.ResultIgnored, &id, nil)
			}
		}

		purchases, err := m.build(ctx, tx, in)
		if err != nil {
			return err
		}
		for _, p := range purchases {
			if err := tx.InsertPurchase(ctx, p); err != nil {
				return err
			}
			n := notificationFor(p)
			if err := tx.InsertNotification(ctx, n); err != nil {
				return err
			}
			created = append(created, createdPurchase{purchase: p, notification: n})
		}
		first := purchases[0].ID
		out = Outcome{Result: constants.ResultCreatedPurchase, PurchaseID: &first, Purchases: purchases}
		return m.insertLedger(ctx, tx, in, constants.ResultCreatedPurchase, &first, nil)
	})
	if errors.Is(err, errAlreadyRecorded) {
		log.Info("materialize.already_processed")
		return Outcome{Result: constants.ResultIgnored}, nil
	}
	if err != nil {
		log.Error("materialize.failed", "error", err)
		return Outcome{}, err
	}

	for _, c := range created {
		m.publish(ctx, c)
	}
	log.Info("materialize.done", "result", out.Result, "purchases", len(out.Purchases))
	return out, nil
}

// RecordFailure writes a failed ledger row carrying cause's message.
func (m *Materializer) RecordFailure(ctx context.Context, userID string, msg entity.RawEmailMessage, cause error) error {
	text := "unknown error"
	if cause != nil {
		text = cause.Error()
	}
	_, err := m.record(ctx, Input{UserID: userID, Message: msg}, constants.ResultFailed, nil, &text)
	return err
}

func (m *Materializer) record(ctx context.Context, in Input, result constants.ProcessedResult, purchaseID *uuid.UUID, errMsg *string) (Outcome, error) {
	err := m.insertLedger(ctx, m.store, in, result, purchaseID, errMsg)
	if errors.Is(err, errAlreadyRecorded) {
		return Outcome{Result: constants.ResultIgnored}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	m.logger.Info("materialize.recorded", "user_id", in.UserID, "email_id", in.Message.ID, "result", result)
	return Outcome{Result: result, PurchaseID: purchaseID}, nil
}

func (m *Materializer) insertLedger(ctx context.Context, st repository.Store, in Input, result constants.ProcessedResult, purchaseID *uuid.UUID, errMsg *string) error {
	inserted, err := st.InsertProcessedEmail(ctx, &entity.ProcessedEmail{
		UserID:       in.UserID,
		EmailID:      in.Message.ID,
		Result:       result,
		PurchaseID:   purchaseID,
		ErrorMessage: errMsg,
		ProcessedAt:  m.now().UTC(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return errAlreadyRecorded
	}
	return nil
}

type createdPurchase struct {
	purchase     *entity.Purchase
	notification *entity.Notification
}

func (m *Materializer) publish(ctx context.Context, c createdPurchase) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishPurchaseDetected(ctx, *c.notification, *c.purchase); err != nil {
		m.logger.Warn("materialize.publish_failed", append(common.LogAttrs(ctx), "purchase_id", c.purchase.ID, "error", err)...)
	}
}

func orderNumber(r extraction.Result) string {
	if r.OrderNumber == nil {
		return ""
	}
	return strings.TrimSpace(*r.OrderNumber)
}

func notificationFor(p *entity.Purchase) *entity.Notification {
	return &entity.Notification{
		UserID:     p.UserID,
		Type:       constants.NotificationPurchaseDetected,
		PurchaseID: p.ID,
		Title:      "New purchase detected",
		Body:       fmt.Sprintf("%s from %s was added to your purchases.", p.ItemName, p.Merchant),
		CreatedAt:  p.CreatedAt,
	}
}
