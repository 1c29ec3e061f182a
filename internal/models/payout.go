package models

import "time"

// Payout records money owed to a freelancer for accepted work.
type Payout struct {
	BaseModel
	FreelancerID string       `gorm:"type:uuid;not null;index" json:"freelancer_id"`
	EmployerID   string       `gorm:"type:uuid;not null;index" json:"employer_id"`
	JobID        string       `gorm:"type:uuid;not null;index" json:"job_id"`
	Amount       float64      `gorm:"not null" json:"amount"`
	Status       PayoutStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaidAt       *time.Time   `json:"paid_at,omitempty"`
}
