package models

import "time"

type Job struct {
	BaseModel
	EmployerID  string     `gorm:"type:uuid;not null;index" json:"employer_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Budget      float64    `json:"budget"`
	Status      JobStatus  `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}
