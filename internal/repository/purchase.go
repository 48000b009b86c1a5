package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const purchasesTable = "purchases"

var purchaseColumns = []string{
	"id", "user_id", "item_name", "merchant", "purchase_date", "price", "currency",
	"warranty_months", "warranty_expires_at", "return_deadline", "order_number",
	"source", "auto_detected", "needs_review", "email_metadata", "created_at",
}

func (s *store) InsertPurchase(ctx context.Context, p *entity.Purchase) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(p.EmailMetadata)
	if err != nil {
		return fmt.Errorf("marshal email metadata: %w", err)
	}

	q, args := s.builder().Insert(purchasesTable).
		Columns(purchaseColumns...).
		Values(
			p.ID.String(), p.UserID, p.ItemName, p.Merchant, p.PurchaseDate.UTC(),
			nullable(p.Price), nullable(p.Currency), p.WarrantyMonths,
			nullableTime(p.WarrantyExpiresAt), nullableTime(p.ReturnDeadline), nullable(p.OrderNumber),
			p.Source, p.AutoDetected, p.NeedsReview, string(meta), p.CreatedAt.UTC(),
		).
		Query()

	if err := s.exec.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repo.purchase.insert_failed", "user_id", p.UserID, "merchant", p.Merchant, "error", err)
		return common.NewAppError("DB_ERROR", "insert purchase", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	s.logger.Info("repo.purchase.inserted", "purchase_id", p.ID, "user_id", p.UserID, "merchant", p.Merchant)
	return nil
}

// FindPurchaseByOrderNumber returns the oldest purchase of the user with the given order number.
func (s *store) FindPurchaseByOrderNumber(ctx context.Context, userID, orderNumber string) (*entity.Purchase, error) {
	b := s.builder()
	q, args := b.Select(purchaseColumns...).
		From(b.Table(purchasesTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("order_number", orderNumber))).
		OrderBy("created_at").
		Limit(1).
		Query()

	var found *entity.Purchase
	err := s.query(ctx, q, args, func(rows *entsql.Rows) error {
		p, err := scanPurchase(rows)
		if err != nil {
			return err
		}
		found = p
		return nil
	})
	if err != nil {
		s.logger.Error("repo.purchase.find_failed", "user_id", userID, "order_number", orderNumber, "error", err)
		return nil, common.NewAppError("DB_ERROR", "find purchase", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return found, nil
}

func (s *store) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]*entity.Purchase, error) {
	b := s.builder()
	sel := b.Select(purchaseColumns...).From(b.Table(purchasesTable))

	var preds []*entsql.Predicate
	if filter.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", filter.UserID))
	}
	if filter.NeedsReviewOnly {
		preds = append(preds, entsql.EQ("needs_review", true))
	}
	if filter.Since != nil {
		preds = append(preds, entsql.GTE("created_at", filter.Since.UTC()))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	q, args := sel.OrderBy(entsql.Desc("purchase_date"), "created_at").Query()

	var out []*entity.Purchase
	err := s.query(ctx, q, args, func(rows *entsql.Rows) error {
		p, err := scanPurchase(rows)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		s.logger.Error("repo.purchase.list_failed", "user_id", filter.UserID, "error", err)
		return nil, common.NewAppError("DB_ERROR", "list purchases", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	s.logger.Debug("repo.purchase.listed", "user_id", filter.UserID, "count", len(out))
	return out, nil
}

func scanPurchase(rows *entsql.Rows) (*entity.Purchase, error) {
	var (
		p        entity.Purchase
		price    sql.NullFloat64
		currency sql.NullString
		warranty sql.NullTime
		ret      sql.NullTime
		order    sql.NullString
		meta     string
	)
	if err := rows.Scan(
		&p.ID, &p.UserID, &p.ItemName, &p.Merchant, &p.PurchaseDate, &price, &currency,
		&p.WarrantyMonths, &warranty, &ret, &order,
		&p.Source, &p.AutoDetected, &p.NeedsReview, &meta, &p.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	p.Price = floatPtr(price)
	p.Currency = stringPtr(currency)
	p.WarrantyExpiresAt = timePtr(warranty)
	p.ReturnDeadline = timePtr(ret)
	p.OrderNumber = stringPtr(order)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &p.EmailMetadata); err != nil {
			return nil, fmt.Errorf("decode email metadata: %w", err)
		}
	}
	return &p, nil
}
