package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/constants"
)

// ProcessedEmail is the ledger row that makes sync idempotent per (user, email).
type ProcessedEmail struct {
	ID           uuid.UUID                 `json:"id"`
	UserID       string                    `json:"user_id"`
	EmailID      string                    `json:"email_id"`
	Result       constants.ProcessedResult `json:"result"`
	PurchaseID   *uuid.UUID                `json:"purchase_id,omitempty"`
	ErrorMessage *string                   `json:"error_message,omitempty"`
	ProcessedAt  time.Time                 `json:"processed_at"`
}
