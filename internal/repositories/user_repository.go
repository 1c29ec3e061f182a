package repositories

import (
	"errors"
	"time"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

type UserRepository interface {
	FindByID(id string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	Create(user *models.User) error
	UpdateRole(userID string, role models.UserRole) error
	UpdateStatus(userID string, status models.UserStatus) error
	UpdateLastLogin(userID string) error

	// Profile lookups used by identity resolution
	FindFreelancerProfile(userID string) (*models.FreelancerProfile, error)
	FindEmployerProfile(userID string) (*models.EmployerProfile, error)
	UpsertFreelancerProfile(profile *models.FreelancerProfile) error
	UpsertEmployerProfile(profile *models.EmployerProfile) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(user *models.User) error {
	err := r.db.Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserAlreadyExists
	}
	return err
}

func (r *userRepository) UpdateRole(userID string, role models.UserRole) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("role", role).Error
}

func (r *userRepository) UpdateStatus(userID string, status models.UserStatus) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("status", status).Error
}

func (r *userRepository) UpdateLastLogin(userID string) error {
	now := time.Now()
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_login_at", &now).Error
}

func (r *userRepository) FindFreelancerProfile(userID string) (*models.FreelancerProfile, error) {
	var profile models.FreelancerProfile
	if err := r.db.First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) FindEmployerProfile(userID string) (*models.EmployerProfile, error) {
	var profile models.EmployerProfile
	if err := r.db.First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) UpsertFreelancerProfile(profile *models.FreelancerProfile) error {
	var existing models.FreelancerProfile
	err := r.db.First(&existing, "user_id = ?", profile.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(profile).Error
	}
	if err != nil {
		return err
	}
	profile.ID = existing.ID
	profile.CreatedAt = existing.CreatedAt
	return r.db.Save(profile).Error
}

func (r *userRepository) UpsertEmployerProfile(profile *models.EmployerProfile) error {
	var existing models.EmployerProfile
	err := r.db.First(&existing, "user_id = ?", profile.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(profile).Error
	}
	if err != nil {
		return err
	}
	profile.ID = existing.ID
	profile.CreatedAt = existing.CreatedAt
	return r.db.Save(profile).Error
}
