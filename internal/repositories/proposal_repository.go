package repositories

import (
	"errors"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrDuplicateProposal = errors.New("proposal already submitted for this job")
)

type ProposalRepository interface {
	Create(proposal *models.Proposal) error
	FindByID(id string) (*models.Proposal, error)
	UpdateStatus(proposalID string, status models.ProposalStatus) error
	FindByJob(jobID string, limit, offset int) ([]models.Proposal, int64, error)
	FindByFreelancer(freelancerID string, limit, offset int) ([]models.Proposal, int64, error)
	FindByEmployer(employerID string) ([]models.Proposal, error)
}

type proposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(proposal *models.Proposal) error {
	err := r.db.Create(proposal).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateProposal
	}
	return err
}

func (r *proposalRepository) FindByID(id string) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.First(&proposal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	return &proposal, nil
}

func (r *proposalRepository) UpdateStatus(proposalID string, status models.ProposalStatus) error {
	return r.db.Model(&models.Proposal{}).Where("id = ?", proposalID).
		Update("status", status).Error
}

func (r *proposalRepository) FindByJob(jobID string, limit, offset int) ([]models.Proposal, int64, error) {
	var proposals []models.Proposal
	var total int64

	q := r.db.Model(&models.Proposal{}).Where("job_id = ?", jobID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(normalizeLimit(limit)).Offset(offset).Find(&proposals).Error
	return proposals, total, err
}

func (r *proposalRepository) FindByFreelancer(freelancerID string, limit, offset int) ([]models.Proposal, int64, error) {
	var proposals []models.Proposal
	var total int64

	q := r.db.Model(&models.Proposal{}).Where("freelancer_id = ?", freelancerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(normalizeLimit(limit)).Offset(offset).Find(&proposals).Error
	return proposals, total, err
}

func (r *proposalRepository) FindByEmployer(employerID string) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.Where("employer_id = ?", employerID).
		Order("created_at DESC").Find(&proposals).Error
	return proposals, err
}
