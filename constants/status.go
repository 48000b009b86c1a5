package constants

// ProcessedResult is the terminal state recorded in the processed_emails ledger.
type ProcessedResult string

// Stable values (store these exact strings in DB).
const (
	ResultNotOrder        ProcessedResult = "not_order"        // email is not a purchase
	ResultIgnored         ProcessedResult = "ignored"          // duplicate order or not materializable
	ResultCreatedPurchase ProcessedResult = "created_purchase" // at least one purchase row written
	ResultFailed          ProcessedResult = "failed"           // extraction or persistence failed
)

// PurchaseSource marks purchases created by the mailbox sync.
const PurchaseSource = "gmail_auto"

// NotificationPurchaseDetected is the notification type emitted per created purchase.
const NotificationPurchaseDetected = "purchase_detected"
