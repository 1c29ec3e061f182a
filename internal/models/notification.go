package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	BaseModel
	UserID  string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type    string         `gorm:"not null" json:"type"` // "new_proposal", "new_message", "proposal_status", ...
	Title   string         `gorm:"not null" json:"title"`
	Message string         `json:"message"`
	Data    datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"` // {"job_id": "...", "proposal_id": "..."}
	IsRead  bool           `gorm:"default:false;index" json:"is_read"`
	ReadAt  *time.Time     `json:"read_at,omitempty"`
}
