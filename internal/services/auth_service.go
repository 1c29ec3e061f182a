package services

import (
	"errors"
	"net/http"

	"workbridge_backend/internal/auth"
	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/services/dto"
	"workbridge_backend/pkg/apperrors"
)

type AuthService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

// Register creates an account with no marketplace role yet; the user
// picks freelancer or employer afterwards via SelectRole.
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.UserRoleNone,
		Status:       models.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrUserAlreadyExists) {
			return nil, apperrors.NewConflictError("auth", "email already registered")
		}
		return nil, apperrors.InternalError(err)
	}

	logger.Info("user registered", "user_id", user.ID)
	return s.respondWithToken(user)
}

func (s *AuthService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if user.Status == models.UserStatusBanned {
		return nil, apperrors.New(apperrors.CodeUserBanned, "auth", "account is banned", http.StatusForbidden)
	}

	if err := s.userRepo.UpdateLastLogin(user.ID); err != nil {
		logger.Warn("last login update failed", "user_id", user.ID, "error", err)
	}
	return s.respondWithToken(user)
}

// SelectRole is a one-time choice after registration. Admins are only
// created out of band. A fresh token is issued because the role is baked
// into claims.
func (s *AuthService) SelectRole(userID string, req *dto.SelectRoleRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("auth", "user not found")
	}
	if user.Role != models.UserRoleNone {
		return nil, apperrors.NewConflictError("auth", "role already selected")
	}
	if req.Role != models.UserRoleFreelancer && req.Role != models.UserRoleEmployer {
		return nil, apperrors.NewBadRequestError("role must be freelancer or employer")
	}

	if err := s.userRepo.UpdateRole(userID, req.Role); err != nil {
		return nil, apperrors.InternalError(err)
	}
	user.Role = req.Role

	logger.Info("user selected role", "user_id", userID, "role", string(req.Role))
	return s.respondWithToken(user)
}

func (s *AuthService) GetMe(userID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("auth", "user not found")
	}
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

func (s *AuthService) respondWithToken(user *models.User) (*dto.AuthResponse, error) {
	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{Token: token, User: dto.ToUserResponse(user)}, nil
}
