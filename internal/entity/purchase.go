package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConfidenceSnapshot is the model's confidence at the time a purchase was created.
type ConfidenceSnapshot struct {
	Overall   string  `json:"overall"`
	Merchant  float64 `json:"merchant"`
	Amount    float64 `json:"amount"`
	Date      float64 `json:"date"`
	EmailType float64 `json:"email_type"`
}

// EmailMetadata links a purchase back to the email it came from.
type EmailMetadata struct {
	Subject    string             `json:"subject"`
	Sender     string             `json:"sender"`
	ReceivedAt time.Time          `json:"received_at"`
	MessageID  string             `json:"message_id"`
	Confidence ConfidenceSnapshot `json:"confidence"`
}

// Purchase represents a purchase record for data transfer between layers.
type Purchase struct {
	ID                uuid.UUID     `json:"id"`
	UserID            string        `json:"user_id"`
	ItemName          string        `json:"item_name"`
	Merchant          string        `json:"merchant"`
	PurchaseDate      time.Time     `json:"purchase_date"`
	Price             *float64      `json:"price,omitempty"`
	Currency          *string       `json:"currency,omitempty"`
	WarrantyMonths    int           `json:"warranty_months"`
	WarrantyExpiresAt *time.Time    `json:"warranty_expires_at,omitempty"`
	ReturnDeadline    *time.Time    `json:"return_deadline,omitempty"`
	OrderNumber       *string       `json:"order_number,omitempty"`
	Source            string        `json:"source"`
	AutoDetected      bool          `json:"auto_detected"`
	NeedsReview       bool          `json:"needs_review"`
	EmailMetadata     EmailMetadata `json:"email_metadata"`
	CreatedAt         time.Time     `json:"created_at"`
}
