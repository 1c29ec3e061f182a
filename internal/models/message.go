package models

import "time"

// Dialog is a conversation between an employer and a freelancer,
// usually opened from a proposal.
type Dialog struct {
	BaseModel
	JobID         string `gorm:"type:uuid;index" json:"job_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

type DialogParticipant struct {
	BaseModel
	DialogID string `gorm:"type:uuid;not null;index:idx_dialog_user,unique" json:"dialog_id"`
	UserID   string `gorm:"type:uuid;not null;index:idx_dialog_user,unique;index" json:"user_id"`
}

type Message struct {
	BaseModel
	DialogID string `gorm:"type:uuid;not null;index" json:"dialog_id"`
	SenderID string `gorm:"type:uuid;not null;index" json:"sender_id"`
	// RecipientID is denormalized so message change events can be
	// scope-checked without loading dialog participants.
	RecipientID string     `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Body        string     `gorm:"not null" json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}
