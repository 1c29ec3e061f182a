package services

import (
	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/pkg/apperrors"
)

// AdminService covers the moderation surface. A ban lands as a users-table
// change event, so active realtime sessions of the banned user terminate
// without any extra signalling.
type AdminService struct {
	userRepo repositories.UserRepository
}

func NewAdminService(userRepo repositories.UserRepository) *AdminService {
	return &AdminService{userRepo: userRepo}
}

func (s *AdminService) SetUserStatus(userID string, status models.UserStatus) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("admin", "user not found")
	}
	if status != models.UserStatusActive && status != models.UserStatusBanned {
		return nil, apperrors.NewBadRequestError("status must be active or banned")
	}
	if user.Status == status {
		return user, nil
	}

	if err := s.userRepo.UpdateStatus(userID, status); err != nil {
		return nil, apperrors.InternalError(err)
	}
	user.Status = status

	logger.Info("user status changed", "user_id", userID, "status", string(status))
	return user, nil
}
