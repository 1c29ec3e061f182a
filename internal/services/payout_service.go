package services

import (
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/pkg/apperrors"
)

type PayoutService struct {
	payoutRepo          repositories.PayoutRepository
	notificationService *NotificationService
}

func NewPayoutService(payoutRepo repositories.PayoutRepository, notificationService *NotificationService) *PayoutService {
	return &PayoutService{
		payoutRepo:          payoutRepo,
		notificationService: notificationService,
	}
}

// ListFor returns the payouts visible to the caller from their side of
// the ledger.
func (s *PayoutService) ListFor(userID string, role models.UserRole) ([]models.Payout, error) {
	var (
		payouts []models.Payout
		err     error
	)
	if role == models.UserRoleEmployer {
		payouts, err = s.payoutRepo.FindByEmployer(userID)
	} else {
		payouts, err = s.payoutRepo.FindByFreelancer(userID)
	}
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return payouts, nil
}

// SetStatus is an admin operation: marking a payout paid or failed after
// the actual money movement happened outside the system.
func (s *PayoutService) SetStatus(payoutID string, status models.PayoutStatus) (*models.Payout, error) {
	payout, err := s.payoutRepo.FindByID(payoutID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("payout", "payout not found")
	}
	if payout.Status != models.PayoutStatusPending {
		return nil, apperrors.NewConflictError("payout", "payout already settled")
	}
	if status != models.PayoutStatusPaid && status != models.PayoutStatusFailed {
		return nil, apperrors.NewBadRequestError("status must be paid or failed")
	}

	if err := s.payoutRepo.UpdateStatus(payoutID, status); err != nil {
		return nil, apperrors.InternalError(err)
	}
	payout.Status = status

	s.notificationService.NotifyPayout(payout)
	return payout, nil
}
