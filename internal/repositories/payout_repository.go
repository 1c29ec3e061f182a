package repositories

import (
	"errors"
	"time"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var ErrPayoutNotFound = errors.New("payout not found")

type PayoutRepository interface {
	Create(payout *models.Payout) error
	FindByID(id string) (*models.Payout, error)
	UpdateStatus(payoutID string, status models.PayoutStatus) error
	FindByFreelancer(freelancerID string) ([]models.Payout, error)
	FindByEmployer(employerID string) ([]models.Payout, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(payout *models.Payout) error {
	return r.db.Create(payout).Error
}

func (r *payoutRepository) FindByID(id string) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.First(&payout, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) UpdateStatus(payoutID string, status models.PayoutStatus) error {
	updates := map[string]interface{}{"status": status}
	if status == models.PayoutStatusPaid {
		now := time.Now()
		updates["paid_at"] = &now
	}
	return r.db.Model(&models.Payout{}).Where("id = ?", payoutID).Updates(updates).Error
}

func (r *payoutRepository) FindByFreelancer(freelancerID string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.Where("freelancer_id = ?", freelancerID).
		Order("created_at DESC").Find(&payouts).Error
	return payouts, err
}

func (r *payoutRepository) FindByEmployer(employerID string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.Where("employer_id = ?", employerID).
		Order("created_at DESC").Find(&payouts).Error
	return payouts, err
}
