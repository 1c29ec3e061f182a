package services

import (
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/services/dto"
	"workbridge_backend/pkg/apperrors"
)

type ProfileService struct {
	userRepo repositories.UserRepository
}

func NewProfileService(userRepo repositories.UserRepository) *ProfileService {
	return &ProfileService{userRepo: userRepo}
}

func (s *ProfileService) UpsertFreelancerProfile(userID string, req *dto.UpsertFreelancerProfileRequest) (*models.FreelancerProfile, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("profile", "user not found")
	}
	if user.Role != models.UserRoleFreelancer {
		return nil, apperrors.NewForbiddenError("only freelancers can edit a freelancer profile")
	}

	profile := &models.FreelancerProfile{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Headline:    req.Headline,
		Bio:         req.Bio,
		HourlyRate:  req.HourlyRate,
		AvatarURL:   req.AvatarURL,
		Skills:      req.Skills,
	}
	if err := s.userRepo.UpsertFreelancerProfile(profile); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return profile, nil
}

func (s *ProfileService) UpsertEmployerProfile(userID string, req *dto.UpsertEmployerProfileRequest) (*models.EmployerProfile, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("profile", "user not found")
	}
	if user.Role != models.UserRoleEmployer {
		return nil, apperrors.NewForbiddenError("only employers can edit an employer profile")
	}

	profile := &models.EmployerProfile{
		UserID:      userID,
		CompanyName: req.CompanyName,
		Website:     req.Website,
		About:       req.About,
		AvatarURL:   req.AvatarURL,
	}
	if err := s.userRepo.UpsertEmployerProfile(profile); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return profile, nil
}

func (s *ProfileService) GetFreelancerProfile(userID string) (*models.FreelancerProfile, error) {
	profile, err := s.userRepo.FindFreelancerProfile(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("profile", "freelancer profile not found")
	}
	return profile, nil
}

func (s *ProfileService) GetEmployerProfile(userID string) (*models.EmployerProfile, error) {
	profile, err := s.userRepo.FindEmployerProfile(userID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("profile", "employer profile not found")
	}
	return profile, nil
}
