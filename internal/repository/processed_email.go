package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const processedEmailsTable = "processed_emails"

var processedEmailColumns = []string{"id", "user_id", "email_id", "result", "purchase_id", "error_message", "processed_at"}

// InsertProcessedEmail writes the ledger row once. It reports false when a row
// for (user_id, email_id) already exists; the existing row is left untouched.
func (s *store) InsertProcessedEmail(ctx context.Context, rec *entity.ProcessedEmail) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	var purchaseID any
	if rec.PurchaseID != nil {
		purchaseID = rec.PurchaseID.String()
	}

	q, args := s.builder().Insert(processedEmailsTable).
		Columns(processedEmailColumns...).
		Values(rec.ID.String(), rec.UserID, rec.EmailID, string(rec.Result), purchaseID, nullable(rec.ErrorMessage), rec.ProcessedAt.UTC()).
		OnConflict(entsql.ConflictColumns("user_id", "email_id"), entsql.DoNothing()).
		Query()

	var res sql.Result
	if err := s.exec.Exec(ctx, q, args, &res); err != nil {
		s.logger.Error("repo.processed_email.insert_failed", "user_id", rec.UserID, "email_id", rec.EmailID, "error", err)
		return false, common.NewAppError("DB_ERROR", "insert processed email", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		s.logger.Info("repo.processed_email.exists", "user_id", rec.UserID, "email_id", rec.EmailID)
	}
	return n > 0, nil
}

func (s *store) FindProcessedEmail(ctx context.Context, userID, emailID string) (*entity.ProcessedEmail, error) {
	b := s.builder()
	q, args := b.Select(processedEmailColumns...).
		From(b.Table(processedEmailsTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("email_id", emailID))).
		Limit(1).
		Query()

	var found *entity.ProcessedEmail
	err := s.query(ctx, q, args, func(rows *entsql.Rows) error {
		rec, err := scanProcessedEmail(rows)
		if err != nil {
			return err
		}
		found = rec
		return nil
	})
	if err != nil {
		s.logger.Error("repo.processed_email.find_failed", "user_id", userID, "email_id", emailID, "error", err)
		return nil, common.NewAppError("DB_ERROR", "find processed email", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return found, nil
}

func scanProcessedEmail(rows *entsql.Rows) (*entity.ProcessedEmail, error) {
	var (
		rec        entity.ProcessedEmail
		result     string
		purchaseID sql.NullString
		errMsg     sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.EmailID, &result, &purchaseID, &errMsg, &rec.ProcessedAt); err != nil {
		return nil, fmt.Errorf("scan processed email: %w", err)
	}
	rec.Result = constants.ProcessedResult(result)
	rec.ErrorMessage = stringPtr(errMsg)
	if purchaseID.Valid {
		id, err := uuid.Parse(purchaseID.String)
		if err != nil {
			return nil, fmt.Errorf("parse purchase id: %w", err)
		}
		rec.PurchaseID = &id
	}
	return &rec, nil
}
