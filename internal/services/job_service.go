package services

import (
	"time"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/services/dto"
	"workbridge_backend/pkg/apperrors"
)

type JobService struct {
	jobRepo             repositories.JobRepository
	proposalRepo        repositories.ProposalRepository
	userRepo            repositories.UserRepository
	notificationService *NotificationService
}

func NewJobService(
	jobRepo repositories.JobRepository,
	proposalRepo repositories.ProposalRepository,
	userRepo repositories.UserRepository,
	notificationService *NotificationService,
) *JobService {
	return &JobService{
		jobRepo:             jobRepo,
		proposalRepo:        proposalRepo,
		userRepo:            userRepo,
		notificationService: notificationService,
	}
}

func (s *JobService) Create(employerID string, req *dto.CreateJobRequest) (*models.Job, error) {
	employer, err := s.userRepo.FindByID(employerID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("job", "employer not found")
	}
	if employer.Role != models.UserRoleEmployer {
		return nil, apperrors.NewForbiddenError("only employers can post jobs")
	}

	job := &models.Job{
		EmployerID:  employerID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.JobStatusDraft,
		Deadline:    req.Deadline,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return job, nil
}

func (s *JobService) Update(employerID, jobID string, req *dto.UpdateJobRequest) (*models.Job, error) {
	job, err := s.ownedJob(employerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusClosed || job.Status == models.JobStatusCancelled {
		return nil, apperrors.NewConflictError("job", "job is no longer editable")
	}

	if req.Title != nil {
		job.Title = *req.Title
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.Budget != nil {
		job.Budget = *req.Budget
	}
	if req.Deadline != nil {
		job.Deadline = req.Deadline
	}
	if err := s.jobRepo.Update(job); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return job, nil
}

// Publish moves a draft into the open pool where freelancers can see it.
func (s *JobService) Publish(employerID, jobID string) (*models.Job, error) {
	job, err := s.ownedJob(employerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusDraft {
		return nil, apperrors.NewConflictError("job", "only draft jobs can be published")
	}
	if err := s.jobRepo.UpdateStatus(jobID, models.JobStatusOpen); err != nil {
		return nil, apperrors.InternalError(err)
	}
	job.Status = models.JobStatusOpen
	return job, nil
}

// Close ends an open job and tells every pending proposer.
func (s *JobService) Close(employerID, jobID string, cancelled bool) (*models.Job, error) {
	job, err := s.ownedJob(employerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.NewConflictError("job", "only open jobs can be closed")
	}

	status := models.JobStatusClosed
	if cancelled {
		status = models.JobStatusCancelled
	}
	if err := s.jobRepo.UpdateStatus(jobID, status); err != nil {
		return nil, apperrors.InternalError(err)
	}
	job.Status = status
	now := time.Now()
	job.ClosedAt = &now

	proposals, _, err := s.proposalRepo.FindByJob(jobID, 0, 0)
	if err != nil {
		logger.Warn("job close: proposer notification skipped", "job_id", jobID, "error", err)
		return job, nil
	}
	for i := range proposals {
		if proposals[i].Status == models.ProposalStatusPending {
			s.notificationService.NotifyJobStatus(job, proposals[i].FreelancerID)
		}
	}
	return job, nil
}

func (s *JobService) Get(jobID string) (*models.Job, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("job", "job not found")
	}
	return job, nil
}

func (s *JobService) ListOpen(limit, offset int) (*dto.JobListResponse, error) {
	jobs, total, err := s.jobRepo.FindOpen(limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.JobListResponse{Jobs: jobs, Total: total}, nil
}

func (s *JobService) ListMine(employerID string, limit, offset int) (*dto.JobListResponse, error) {
	jobs, total, err := s.jobRepo.FindByEmployer(employerID, limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.JobListResponse{Jobs: jobs, Total: total}, nil
}

func (s *JobService) ownedJob(employerID, jobID string) (*models.Job, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("job", "job not found")
	}
	if job.EmployerID != employerID {
		return nil, apperrors.NewForbiddenError("job belongs to another employer")
	}
	return job, nil
}
