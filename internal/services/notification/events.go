package notification

import (
	"time"

	"github.com/google/uuid"
)

// Event names emitted after ledger state changes.
const (
	EventKYCSubmitted         = "kyc.submitted"
	EventKYCStatusChanged     = "kyc.status_changed"
	EventWalletCreated        = "wallet.created"
	EventDepositCompleted     = "deposit.completed"
	EventTransferSent         = "transfer.sent"
	EventTransferReceived     = "transfer.received"
	EventPaymentMethodAdded   = "payment_method.added"
	EventPaymentMethodRemoved = "payment_method.removed"
)

// Event is the envelope handed to every sink.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	AccountID  string                 `json:"account_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(name, accountID string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		AccountID:  accountID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
