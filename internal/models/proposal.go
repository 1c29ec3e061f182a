package models

type Proposal struct {
	BaseModel
	JobID        string         `gorm:"type:uuid;not null;index:idx_proposals_job;index:idx_proposals_job_freelancer,unique" json:"job_id"`
	FreelancerID string         `gorm:"type:uuid;not null;index;index:idx_proposals_job_freelancer,unique" json:"freelancer_id"`
	// EmployerID is denormalized from the job row so change events carry
	// enough to evaluate employer scopes without a join.
	EmployerID   string         `gorm:"type:uuid;not null;index" json:"employer_id"`
	CoverLetter  string         `json:"cover_letter"`
	BidAmount    float64        `json:"bid_amount"`
	Status       ProposalStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
}
