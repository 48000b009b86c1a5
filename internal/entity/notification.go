package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a user-facing message created alongside a detected purchase.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	PurchaseID uuid.UUID `json:"purchase_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
