package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const notificationsTable = "notifications"

func (s *store) InsertNotification(ctx context.Context, n *entity.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	q, args := s.builder().Insert(notificationsTable).
		Columns("id", "user_id", "type", "purchase_id", "title", "body", "created_at").
		Values(n.ID.String(), n.UserID, n.Type, n.PurchaseID.String(), n.Title, n.Body, n.CreatedAt.UTC()).
		Query()

	if err := s.exec.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repo.notification.insert_failed", "user_id", n.UserID, "purchase_id", n.PurchaseID, "error", err)
		return common.NewAppError("DB_ERROR", "insert notification", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return nil
}
