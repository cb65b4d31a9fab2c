package transaction

import (
	"custody/internal/models"
	"custody/internal/money"
)

// RecordRequest describes a journal entry to append. Empty wallet ids and an
// empty ExternalRef are stored as NULL.
type RecordRequest struct {
	Kind           string
	Amount         money.Amount
	Currency       string
	SourceWalletID string
	DestWalletID   string
	ExternalRef    string
	// Status defaults to pending when ExternalRef is set and to completed
	// otherwise.
	Status      string
	Description string
	Metadata    models.JSON
}
