package services

import (
	"errors"

	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/services/dto"
	"workbridge_backend/pkg/apperrors"
)

type MessageService struct {
	messageRepo         repositories.MessageRepository
	userRepo            repositories.UserRepository
	jobRepo             repositories.JobRepository
	notificationService *NotificationService
}

func NewMessageService(
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	jobRepo repositories.JobRepository,
	notificationService *NotificationService,
) *MessageService {
	return &MessageService{
		messageRepo:         messageRepo,
		userRepo:            userRepo,
		jobRepo:             jobRepo,
		notificationService: notificationService,
	}
}

// StartDialog opens (or reuses) the conversation between the caller and
// the recipient around a job and sends the first message.
func (s *MessageService) StartDialog(senderID string, req *dto.StartDialogRequest) (*models.Message, error) {
	if senderID == req.RecipientID {
		return nil, apperrors.NewBadRequestError("cannot message yourself")
	}
	if _, err := s.userRepo.FindByID(req.RecipientID); err != nil {
		return nil, apperrors.NewNotFoundError("message", "recipient not found")
	}
	if _, err := s.jobRepo.FindByID(req.JobID); err != nil {
		return nil, apperrors.NewNotFoundError("message", "job not found")
	}

	dialog, err := s.messageRepo.FindDialogBetween(req.JobID, senderID, req.RecipientID)
	if errors.Is(err, repositories.ErrDialogNotFound) {
		dialog = &models.Dialog{JobID: req.JobID}
		if err := s.messageRepo.CreateDialog(dialog, []string{senderID, req.RecipientID}); err != nil {
			return nil, apperrors.InternalError(err)
		}
	} else if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return s.send(dialog.ID, senderID, req.RecipientID, req.Body)
}

func (s *MessageService) SendMessage(senderID string, req *dto.SendMessageRequest) (*models.Message, error) {
	ok, err := s.messageRepo.IsParticipant(req.DialogID, senderID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !ok {
		return nil, apperrors.NewForbiddenError("not a participant of this dialog")
	}

	recipientID, err := s.otherParticipant(req.DialogID, senderID)
	if err != nil {
		return nil, err
	}
	return s.send(req.DialogID, senderID, recipientID, req.Body)
}

func (s *MessageService) send(dialogID, senderID, recipientID, body string) (*models.Message, error) {
	message := &models.Message{
		DialogID:    dialogID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	}
	if err := s.messageRepo.CreateMessage(message); err != nil {
		return nil, apperrors.InternalError(err)
	}

	s.notificationService.NotifyNewMessage(message, s.senderName(senderID))
	return message, nil
}

// senderName resolves a display name for the toast; falls back to the
// account email's local part if no profile exists yet.
func (s *MessageService) senderName(userID string) string {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "Someone"
	}
	switch user.Role {
	case models.UserRoleFreelancer:
		if profile, err := s.userRepo.FindFreelancerProfile(userID); err == nil {
			return profile.DisplayName
		}
	case models.UserRoleEmployer:
		if profile, err := s.userRepo.FindEmployerProfile(userID); err == nil {
			return profile.CompanyName
		}
	}
	for i, r := range user.Email {
		if r == '@' {
			return user.Email[:i]
		}
	}
	return user.Email
}

func (s *MessageService) otherParticipant(dialogID, userID string) (string, error) {
	participants, err := s.messageRepo.FindDialogParticipants(dialogID)
	if err != nil {
		return "", apperrors.InternalError(err)
	}
	for _, p := range participants {
		if p.UserID != userID {
			return p.UserID, nil
		}
	}
	return "", apperrors.NewConflictError("message", "dialog has no other participant")
}

func (s *MessageService) ListDialogs(userID string) ([]models.Dialog, error) {
	dialogs, err := s.messageRepo.FindUserDialogs(userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return dialogs, nil
}

func (s *MessageService) ListMessages(userID, dialogID string, limit, offset int) (*dto.MessageListResponse, error) {
	ok, err := s.messageRepo.IsParticipant(dialogID, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !ok {
		return nil, apperrors.NewForbiddenError("not a participant of this dialog")
	}

	messages, total, err := s.messageRepo.FindDialogMessages(dialogID, limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.MessageListResponse{Messages: messages, Total: total}, nil
}

// MarkRead stamps a message as read by its recipient.
func (s *MessageService) MarkRead(userID, messageID string) error {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return apperrors.NewNotFoundError("message", "message not found")
	}
	if message.RecipientID != userID {
		return apperrors.NewForbiddenError("message is addressed to another user")
	}
	return s.messageRepo.MarkMessageRead(messageID)
}
