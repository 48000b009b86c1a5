package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

// Store is the persistence surface of the sync pipeline. Find* and Lookup*
// methods return nil without error when nothing matches.
type Store interface {
	InsertProcessedEmail(ctx context.Context, rec *entity.ProcessedEmail) (bool, error)
	FindProcessedEmail(ctx context.Context, userID, emailID string) (*entity.ProcessedEmail, error)
	InsertPurchase(ctx context.Context, p *entity.Purchase) error
	FindPurchaseByOrderNumber(ctx context.Context, userID, orderNumber string) (*entity.Purchase, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]*entity.Purchase, error)
	InsertNotification(ctx context.Context, n *entity.Notification) error
	LookupMerchantDefaults(ctx context.Context, merchantName string) (*entity.MerchantDefaults, error)
	UpsertMerchantDefaults(ctx context.Context, d entity.MerchantDefaults) error
	// InTx runs fn against a transactional store. Nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

// PurchaseFilter narrows ListPurchases; zero values match everything.
type PurchaseFilter struct {
	UserID          string
	NeedsReviewOnly bool
	Since           *time.Time
}

type store struct {
	drv     *entsql.Driver
	exec    dialect.ExecQuerier
	dialect string
	logger  *slog.Logger
}

func NewStore(db *DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &store{
		drv:     db.Driver,
		exec:    db.Driver,
		dialect: db.Dialect,
		logger:  logger,
	}
}

func (s *store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *store) InTx(ctx context.Context, fn func(Store) error) error {
	if s.drv == nil {
		return fn(s)
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &store{exec: tx, dialect: s.dialect, logger: s.logger}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("repo.tx.rollback_failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *store) query(ctx context.Context, q string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := s.exec.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
