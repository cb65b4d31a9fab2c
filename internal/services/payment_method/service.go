// Package payment_method keeps the registry of provider instruments bound to
// accounts. One row exists per external instrument id.
package payment_method

import (
	"context"
	"errors"
	"fmt"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/repositories"
	"custody/internal/services/gateway"
	"custody/internal/services/notification"

	"go.uber.org/zap"
)

// AddResult reports the registered instrument and whether it was already
// present before the call.
type AddResult struct {
	Method        *models.PaymentMethod
	AlreadyExists bool
}

// Service defines payment instrument registry operations
type Service interface {
	Add(ctx context.Context, accountID, payerRef, externalID string) (*AddResult, error)
	Find(ctx context.Context, accountID, externalID string) (*models.PaymentMethod, error)
	Remove(ctx context.Context, accountID, externalID string) error
	List(ctx context.Context, accountID string) ([]*models.PaymentMethod, error)
}

type service struct {
	store    repositories.Store
	gateway  gateway.Gateway
	notifier notification.Notifier
	logger   *zap.Logger
}

func NewService(store repositories.Store, gw gateway.Gateway, notifier notification.Notifier, logger *zap.Logger) Service {
	if store == nil {
		panic("store is required")
	}
	if gw == nil {
		panic("gateway is required")
	}
	if notifier == nil {
		notifier = notification.NoopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		logger:   logger.Named("payment_method"),
	}
}

func (s *service) Add(ctx context.Context, accountID, payerRef, externalID string) (*AddResult, error) {
	if externalID == "" {
		return nil, apperrors.New(apperrors.KindInvalidState, "INSTRUMENT_REQUIRED", "payment method id is required")
	}

	existing, err := s.store.PaymentMethods().GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return s.existingResult(existing, accountID)
	case !errors.Is(err, repositories.ErrPaymentMethodNotFound):
		return nil, fmt.Errorf("failed to look up payment method: %w", err)
	}

	inst, err := s.gateway.RetrieveInstrument(ctx, externalID)
	if err != nil {
		return nil, gatewayError("failed to retrieve payment method", err)
	}
	if err := s.gateway.AttachToPayer(ctx, externalID, payerRef); err != nil {
		return nil, gatewayError("failed to attach payment method", err)
	}

	current, err := s.store.PaymentMethods().ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}

	pm := &models.PaymentMethod{
		AccountID:  accountID,
		ExternalID: externalID,
		Type:       inst.Type,
		Brand:      inst.Brand,
		LastFour:   inst.LastFour,
		ExpMonth:   inst.ExpMonth,
		ExpYear:    inst.ExpYear,
		IsDefault:  len(current) == 0,
	}
	if err := s.store.PaymentMethods().Create(ctx, pm); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// A concurrent add for the same instrument won the insert.
			winner, lookupErr := s.store.PaymentMethods().GetByExternalID(ctx, externalID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to reload payment method: %w", lookupErr)
			}
			return s.existingResult(winner, accountID)
		}
		return nil, fmt.Errorf("failed to save payment method: %w", err)
	}

	s.logger.Info("payment method added",
		zap.String("account_id", accountID),
		zap.String("payment_method", externalID),
		zap.String("brand", pm.Brand),
	)
	s.notifier.Notify(ctx, notification.EventPaymentMethodAdded, accountID, map[string]interface{}{
		"payment_method_id": externalID,
		"brand":             pm.Brand,
		"last4":             pm.LastFour,
	})
	return &AddResult{Method: pm}, nil
}

func (s *service) existingResult(pm *models.PaymentMethod, accountID string) (*AddResult, error) {
	if pm.AccountID != accountID {
		return nil, apperrors.Newf(apperrors.KindAlreadyExists, "PAYMENT_METHOD_TAKEN",
			"payment method %s is registered to another account", pm.ExternalID)
	}
	return &AddResult{Method: pm, AlreadyExists: true}, nil
}

func (s *service) Find(ctx context.Context, accountID, externalID string) (*models.PaymentMethod, error) {
	pm, err := s.store.PaymentMethods().GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentMethodNotFound) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, "PAYMENT_METHOD_NOT_FOUND",
				fmt.Sprintf("payment method %s not found", externalID), err)
		}
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	if pm.AccountID != accountID {
		return nil, apperrors.Newf(apperrors.KindForbidden, "PAYMENT_METHOD_FORBIDDEN",
			"payment method %s does not belong to this account", externalID)
	}
	return pm, nil
}

func (s *service) Remove(ctx context.Context, accountID, externalID string) error {
	pm, err := s.store.PaymentMethods().GetByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, repositories.ErrPaymentMethodNotFound) {
		return fmt.Errorf("failed to get payment method: %w", err)
	}
	if err != nil || pm.AccountID != accountID {
		return apperrors.Newf(apperrors.KindNotFound, "PAYMENT_METHOD_NOT_FOUND",
			"payment method %s not found for this account", externalID)
	}

	if err := s.gateway.Detach(ctx, externalID); err != nil {
		return gatewayError("failed to detach payment method", err)
	}
	if err := s.store.PaymentMethods().Delete(ctx, pm.ID); err != nil {
		if errors.Is(err, repositories.ErrPaymentMethodNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete payment method: %w", err)
	}

	s.logger.Info("payment method removed",
		zap.String("account_id", accountID),
		zap.String("payment_method", externalID),
	)
	s.notifier.Notify(ctx, notification.EventPaymentMethodRemoved, accountID, map[string]interface{}{
		"payment_method_id": externalID,
	})
	return nil
}

func (s *service) List(ctx context.Context, accountID string) ([]*models.PaymentMethod, error) {
	methods, err := s.store.PaymentMethods().ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

func gatewayError(message string, err error) error {
	return apperrors.Wrap(apperrors.KindGateway, "GATEWAY_ERROR", message, err)
}
