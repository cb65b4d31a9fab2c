package transaction

import (
	"context"

	"custody/internal/models"
	"custody/internal/repositories"
)

// Service is the append-only money movement journal.
type Service interface {
	// WithStore returns a journal bound to store, typically the Store handed
	// to a unit of work.
	WithStore(store repositories.Store) Service

	Record(ctx context.Context, req RecordRequest) (*models.Transaction, error)
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (*models.Transaction, error)

	// FindByExternalRefForUpdate also takes a row lock when called inside a
	// unit of work.
	FindByExternalRefForUpdate(ctx context.Context, ref string) (*models.Transaction, error)

	BelongsToAccount(ctx context.Context, tx *models.Transaction, accountID string) (bool, error)
	MarkCompleted(ctx context.Context, tx *models.Transaction, metadata models.JSON) error
	MarkFailed(ctx context.Context, tx *models.Transaction, reason string) error
	History(ctx context.Context, walletID string, limit, offset int) ([]*models.Transaction, error)
}
