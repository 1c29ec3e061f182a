package dto

import "workbridge_backend/internal/models"

type CreateProposalRequest struct {
	JobID       string  `json:"job_id" validate:"required,uuid"`
	CoverLetter string  `json:"cover_letter" validate:"max=10000"`
	BidAmount   float64 `json:"bid_amount" validate:"gte=0"`
}

type UpdateProposalStatusRequest struct {
	Status models.ProposalStatus `json:"status" validate:"required,oneof=accepted rejected"`
}

type ProposalListResponse struct {
	Proposals []models.Proposal `json:"proposals"`
	Total     int64             `json:"total"`
}
