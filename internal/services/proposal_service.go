package services

import (
	"errors"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/services/dto"
	"workbridge_backend/pkg/apperrors"
)

type ProposalService struct {
	proposalRepo        repositories.ProposalRepository
	jobRepo             repositories.JobRepository
	userRepo            repositories.UserRepository
	payoutRepo          repositories.PayoutRepository
	notificationService *NotificationService
}

func NewProposalService(
	proposalRepo repositories.ProposalRepository,
	jobRepo repositories.JobRepository,
	userRepo repositories.UserRepository,
	payoutRepo repositories.PayoutRepository,
	notificationService *NotificationService,
) *ProposalService {
	return &ProposalService{
		proposalRepo:        proposalRepo,
		jobRepo:             jobRepo,
		userRepo:            userRepo,
		payoutRepo:          payoutRepo,
		notificationService: notificationService,
	}
}

func (s *ProposalService) Create(freelancerID string, req *dto.CreateProposalRequest) (*models.Proposal, error) {
	freelancer, err := s.userRepo.FindByID(freelancerID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("proposal", "freelancer not found")
	}
	if freelancer.Role != models.UserRoleFreelancer {
		return nil, apperrors.NewForbiddenError("only freelancers can submit proposals")
	}

	job, err := s.jobRepo.FindByID(req.JobID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("proposal", "job not found")
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.NewConflictError("proposal", "job is not accepting proposals")
	}

	proposal := &models.Proposal{
		JobID:        job.ID,
		FreelancerID: freelancerID,
		// Denormalized so change events carry the employer without a join.
		EmployerID:  job.EmployerID,
		CoverLetter: req.CoverLetter,
		BidAmount:   req.BidAmount,
		Status:      models.ProposalStatusPending,
	}
	if err := s.proposalRepo.Create(proposal); err != nil {
		if errors.Is(err, repositories.ErrDuplicateProposal) {
			return nil, apperrors.NewConflictError("proposal", "proposal already submitted for this job")
		}
		return nil, apperrors.InternalError(err)
	}

	s.notificationService.NotifyNewProposal(job, proposal)
	return proposal, nil
}

// Decide accepts or rejects a proposal. Acceptance also opens a pending
// payout for the freelancer at the bid amount.
func (s *ProposalService) Decide(employerID, proposalID string, req *dto.UpdateProposalStatusRequest) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.FindByID(proposalID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("proposal", "proposal not found")
	}
	if proposal.EmployerID != employerID {
		return nil, apperrors.NewForbiddenError("proposal belongs to another employer's job")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperrors.NewConflictError("proposal", "proposal already decided")
	}

	job, err := s.jobRepo.FindByID(proposal.JobID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := s.proposalRepo.UpdateStatus(proposalID, req.Status); err != nil {
		return nil, apperrors.InternalError(err)
	}
	proposal.Status = req.Status

	if req.Status == models.ProposalStatusAccepted {
		payout := &models.Payout{
			FreelancerID: proposal.FreelancerID,
			EmployerID:   employerID,
			JobID:        proposal.JobID,
			Amount:       proposal.BidAmount,
			Status:       models.PayoutStatusPending,
		}
		if err := s.payoutRepo.Create(payout); err != nil {
			logger.Error("payout create failed for accepted proposal",
				"proposal_id", proposalID, "error", err)
		} else {
			s.notificationService.NotifyPayout(payout)
		}
	}

	s.notificationService.NotifyProposalStatus(job, proposal)
	return proposal, nil
}

// Withdraw lets a freelancer pull back a pending proposal.
func (s *ProposalService) Withdraw(freelancerID, proposalID string) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.FindByID(proposalID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("proposal", "proposal not found")
	}
	if proposal.FreelancerID != freelancerID {
		return nil, apperrors.NewForbiddenError("proposal belongs to another freelancer")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperrors.NewConflictError("proposal", "only pending proposals can be withdrawn")
	}

	if err := s.proposalRepo.UpdateStatus(proposalID, models.ProposalStatusWithdrawn); err != nil {
		return nil, apperrors.InternalError(err)
	}
	proposal.Status = models.ProposalStatusWithdrawn
	return proposal, nil
}

func (s *ProposalService) ListForJob(employerID, jobID string, limit, offset int) (*dto.ProposalListResponse, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("proposal", "job not found")
	}
	if job.EmployerID != employerID {
		return nil, apperrors.NewForbiddenError("job belongs to another employer")
	}

	proposals, total, err := s.proposalRepo.FindByJob(jobID, limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.ProposalListResponse{Proposals: proposals, Total: total}, nil
}

func (s *ProposalService) ListMine(freelancerID string, limit, offset int) (*dto.ProposalListResponse, error) {
	proposals, total, err := s.proposalRepo.FindByFreelancer(freelancerID, limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.ProposalListResponse{Proposals: proposals, Total: total}, nil
}
