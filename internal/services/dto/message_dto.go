package dto

import "workbridge_backend/internal/models"

type StartDialogRequest struct {
	JobID       string `json:"job_id" validate:"required,uuid"`
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Body        string `json:"body" validate:"required,min=1,max=10000"`
}

type SendMessageRequest struct {
	DialogID string `json:"dialog_id" validate:"required,uuid"`
	Body     string `json:"body" validate:"required,min=1,max=10000"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
	Total    int64            `json:"total"`
}
