package repositories

import (
	"errors"
	"time"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("job not found")

type JobRepository interface {
	Create(job *models.Job) error
	FindByID(id string) (*models.Job, error)
	Update(job *models.Job) error
	UpdateStatus(jobID string, status models.JobStatus) error
	FindByEmployer(employerID string, limit, offset int) ([]models.Job, int64, error)
	FindOpen(limit, offset int) ([]models.Job, int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.Job) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) FindByID(id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) Update(job *models.Job) error {
	return r.db.Save(job).Error
}

func (r *jobRepository) UpdateStatus(jobID string, status models.JobStatus) error {
	updates := map[string]interface{}{"status": status}
	if status == models.JobStatusClosed || status == models.JobStatusCancelled {
		now := time.Now()
		updates["closed_at"] = &now
	}
	return r.db.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error
}

func (r *jobRepository) FindByEmployer(employerID string, limit, offset int) ([]models.Job, int64, error) {
	var jobs []models.Job
	var total int64

	q := r.db.Model(&models.Job{}).Where("employer_id = ?", employerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(normalizeLimit(limit)).Offset(offset).Find(&jobs).Error
	return jobs, total, err
}

func (r *jobRepository) FindOpen(limit, offset int) ([]models.Job, int64, error) {
	var jobs []models.Job
	var total int64

	q := r.db.Model(&models.Job{}).Where("status = ?", models.JobStatusOpen)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(normalizeLimit(limit)).Offset(offset).Find(&jobs).Error
	return jobs, total, err
}
