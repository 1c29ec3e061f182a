package dto

import (
	"time"

	"workbridge_backend/internal/models"
)

type CreateJobRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Budget      float64    `json:"budget" validate:"gte=0"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type UpdateJobRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Budget      *float64   `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type JobListResponse struct {
	Jobs  []models.Job `json:"jobs"`
	Total int64        `json:"total"`
}
