// Package kyc decides whether an account may hold funds, backed by one
// verification record per account.
package kyc

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/repositories"
	"custody/internal/services/notification"

	"go.uber.org/zap"
)

// Service defines identity verification operations
type Service interface {
	Submit(ctx context.Context, accountID string) (*models.KYCVerification, error)
	AddEvidence(ctx context.Context, accountID, evidenceType string, content []byte) (*models.KYCVerification, error)
	IsApproved(ctx context.Context, accountID string) (bool, error)
	SetStatus(ctx context.Context, accountID, status string, reason *string) (*models.KYCVerification, error)
	Resubmit(ctx context.Context, accountID string) (*models.KYCVerification, error)
	GetStatus(ctx context.Context, accountID string) (*StatusView, error)
}

type service struct {
	store    repositories.Store
	notifier notification.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new verification service
func NewService(store repositories.Store, notifier notification.Notifier, config Config, logger *zap.Logger) Service {
	if store == nil {
		panic("store is required")
	}
	if notifier == nil {
		notifier = notification.NoopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:    store,
		notifier: notifier,
		config:   config,
		logger:   logger.Named("kyc"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Submit(ctx context.Context, accountID string) (*models.KYCVerification, error) {
	record := &models.KYCVerification{
		AccountID: accountID,
		Status:    models.KYCStatusPending,
		Evidence:  models.EvidenceList{},
	}
	if s.config.AutoApprove {
		approvedAt := s.now()
		record.Status = models.KYCStatusApproved
		record.ApprovedAt = &approvedAt
	}

	if err := s.store.Verifications().Create(ctx, record); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Newf(apperrors.KindAlreadyExists, "KYC_ALREADY_INITIATED",
				"verification already initiated for account %s", accountID)
		}
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}

	s.logger.Info("verification initiated",
		zap.String("account_id", accountID),
		zap.Bool("auto_approved", s.config.AutoApprove),
	)
	s.notifier.Notify(ctx, notification.EventKYCSubmitted, accountID, map[string]interface{}{
		"status": record.Status,
	})
	return record, nil
}

func (s *service) AddEvidence(ctx context.Context, accountID, evidenceType string, content []byte) (*models.KYCVerification, error) {
	if evidenceType == "" {
		return nil, apperrors.New(apperrors.KindInvalidState, "EVIDENCE_TYPE_REQUIRED", "evidence type is required")
	}

	if _, err := s.store.Verifications().GetByAccountID(ctx, accountID); errors.Is(err, repositories.ErrVerificationNotFound) {
		// A concurrent submit winning the race is fine.
		if _, err := s.Submit(ctx, accountID); err != nil && apperrors.KindOf(err) != apperrors.KindAlreadyExists {
			return nil, err
		}
	} else if err != nil {
		return nil, s.lookupError(err, accountID)
	}

	var record *models.KYCVerification
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		var err error
		record, err = tx.Verifications().GetByAccountIDForUpdate(ctx, accountID)
		if err != nil {
			return s.lookupError(err, accountID)
		}
		if s.config.AutoApprove {
			return nil
		}
		if record.Status != models.KYCStatusPending {
			return apperrors.Newf(apperrors.KindInvalidState, "KYC_NOT_PENDING",
				"verification is %s, evidence can only be added while pending", record.Status)
		}

		record.Evidence = append(record.Evidence, models.Evidence{
			Type:       evidenceType,
			Content:    append([]byte(nil), content...),
			UploadedAt: s.now(),
		})
		if err := tx.Verifications().Update(ctx, record); err != nil {
			return fmt.Errorf("failed to store evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.config.AutoApprove {
		s.logger.Debug("evidence skipped under auto-approval", zap.String("account_id", accountID))
		return record, nil
	}

	s.logger.Info("evidence added",
		zap.String("account_id", accountID),
		zap.String("type", evidenceType),
		zap.Int("count", len(record.Evidence)),
	)
	return record, nil
}

func (s *service) IsApproved(ctx context.Context, accountID string) (bool, error) {
	if s.config.AutoApprove {
		return true, nil
	}
	record, err := s.store.Verifications().GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrVerificationNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check verification: %w", err)
	}
	return record.Status == models.KYCStatusApproved, nil
}

func (s *service) SetStatus(ctx context.Context, accountID, status string, reason *string) (*models.KYCVerification, error) {
	switch status {
	case models.KYCStatusPending, models.KYCStatusApproved, models.KYCStatusRejected:
	default:
		return nil, apperrors.Newf(apperrors.KindInvalidState, "KYC_INVALID_STATUS", "unknown verification status %q", status)
	}

	var (
		record   *models.KYCVerification
		previous string
	)
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		var err error
		record, err = tx.Verifications().GetByAccountIDForUpdate(ctx, accountID)
		if err != nil {
			return s.lookupError(err, accountID)
		}
		previous = record.Status
		if previous == status {
			return nil
		}
		if previous != models.KYCStatusPending {
			return apperrors.Newf(apperrors.KindInvalidState, "KYC_INVALID_TRANSITION",
				"verification cannot move from %s to %s", previous, status)
		}

		record.Status = status
		switch status {
		case models.KYCStatusApproved:
			approvedAt := s.now()
			record.ApprovedAt = &approvedAt
			record.RejectionReason = nil
		case models.KYCStatusRejected:
			record.RejectionReason = reason
		}
		if err := tx.Verifications().Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update verification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous == status {
		return record, nil
	}

	s.logger.Info("verification status changed",
		zap.String("account_id", accountID),
		zap.String("from", previous),
		zap.String("to", status),
	)
	s.notifyStatus(ctx, record)
	return record, nil
}

func (s *service) Resubmit(ctx context.Context, accountID string) (*models.KYCVerification, error) {
	var record *models.KYCVerification
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		var err error
		record, err = tx.Verifications().GetByAccountIDForUpdate(ctx, accountID)
		if err != nil {
			return s.lookupError(err, accountID)
		}
		if record.Status != models.KYCStatusRejected {
			return apperrors.Newf(apperrors.KindInvalidState, "KYC_NOT_REJECTED",
				"verification is %s, only rejected verifications can be resubmitted", record.Status)
		}

		record.Status = models.KYCStatusPending
		record.RejectionReason = nil
		record.Evidence = models.EvidenceList{}
		if err := tx.Verifications().Update(ctx, record); err != nil {
			return fmt.Errorf("failed to resubmit verification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification resubmitted", zap.String("account_id", accountID))
	s.notifyStatus(ctx, record)
	return record, nil
}

func (s *service) GetStatus(ctx context.Context, accountID string) (*StatusView, error) {
	record, err := s.store.Verifications().GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, s.lookupError(err, accountID)
	}

	view := &StatusView{
		Status:          record.Status,
		Evidence:        make([]EvidenceSummary, 0, len(record.Evidence)),
		InitiatedAt:     record.CreatedAt,
		ApprovedAt:      record.ApprovedAt,
		RejectionReason: record.RejectionReason,
		AutoApproved:    s.config.AutoApprove,
	}
	for _, e := range record.Evidence {
		view.Evidence = append(view.Evidence, EvidenceSummary{Type: e.Type, UploadedAt: e.UploadedAt})
	}
	return view, nil
}

func (s *service) notifyStatus(ctx context.Context, record *models.KYCVerification) {
	payload := map[string]interface{}{"status": record.Status}
	if record.RejectionReason != nil {
		payload["rejection_reason"] = *record.RejectionReason
	}
	s.notifier.Notify(ctx, notification.EventKYCStatusChanged, record.AccountID, payload)
}

func (s *service) lookupError(err error, accountID string) error {
	if errors.Is(err, repositories.ErrVerificationNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, "KYC_NOT_FOUND",
			fmt.Sprintf("no verification for account %s", accountID), err)
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("failed to load verification: %w", err)
}
