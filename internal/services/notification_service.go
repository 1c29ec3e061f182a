package services

import (
	"encoding/json"
	"fmt"

	"workbridge_backend/internal/email"
	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/pkg/apperrors"
)

// PresenceChecker reports whether a user currently has a live realtime
// connection. The websocket manager implements it.
type PresenceChecker interface {
	IsUserConnected(userID string) bool
}

// NotificationService persists notifications; the database trigger turns
// each insert into a change event, so delivery to connected clients is
// just a side effect of the write. Offline recipients get an email.
type NotificationService struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	presence         PresenceChecker
	emailProvider    email.Provider
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	presence PresenceChecker,
	emailProvider email.Provider,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		presence:         presence,
		emailProvider:    emailProvider,
	}
}

func (s *NotificationService) notify(userID, notifType, title, message string, data map[string]string) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		logger.Error("notification data marshal failed", "type", notifType, "error", err)
		return
	}

	notification := &models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		logger.Error("notification create failed", "type", notifType, "user_id", userID, "error", err)
		return
	}

	// Connected users see the toast through their realtime session; only
	// offline users get the email.
	if s.presence != nil && s.presence.IsUserConnected(userID) {
		return
	}
	s.sendEmail(userID, title, message)
}

func (s *NotificationService) sendEmail(userID, subject, body string) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		logger.Warn("notification email skipped, user lookup failed", "user_id", userID, "error", err)
		return
	}
	err = s.emailProvider.Send(&email.Email{
		To:      []string{user.Email},
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		logger.Warn("notification email failed", "user_id", userID, "error", err)
	}
}

// --- factory methods, one per real-world event ---

func (s *NotificationService) NotifyNewProposal(job *models.Job, proposal *models.Proposal) {
	s.notify(job.EmployerID, repositories.NotificationTypeNewProposal,
		"New proposal",
		fmt.Sprintf("You received a new proposal for %q", job.Title),
		map[string]string{"job_id": job.ID, "proposal_id": proposal.ID})
}

func (s *NotificationService) NotifyProposalStatus(job *models.Job, proposal *models.Proposal) {
	var message string
	switch proposal.Status {
	case models.ProposalStatusAccepted:
		message = fmt.Sprintf("Your proposal for %q was accepted", job.Title)
	case models.ProposalStatusRejected:
		message = fmt.Sprintf("Your proposal for %q was declined", job.Title)
	default:
		return
	}
	s.notify(proposal.FreelancerID, repositories.NotificationTypeProposalStatus,
		"Proposal update", message,
		map[string]string{"job_id": job.ID, "proposal_id": proposal.ID})
}

func (s *NotificationService) NotifyNewMessage(message *models.Message, senderName string) {
	s.notify(message.RecipientID, repositories.NotificationTypeNewMessage,
		"New message",
		fmt.Sprintf("%s sent you a message", senderName),
		map[string]string{"dialog_id": message.DialogID, "message_id": message.ID})
}

func (s *NotificationService) NotifyJobStatus(job *models.Job, freelancerID string) {
	s.notify(freelancerID, repositories.NotificationTypeJobStatus,
		"Job update",
		fmt.Sprintf("The job %q is now %s", job.Title, job.Status),
		map[string]string{"job_id": job.ID})
}

func (s *NotificationService) NotifyPayout(payout *models.Payout) {
	s.notify(payout.FreelancerID, repositories.NotificationTypePayout,
		"Payout update",
		fmt.Sprintf("Your payout of %.2f is %s", payout.Amount, payout.Status),
		map[string]string{"payout_id": payout.ID, "job_id": payout.JobID})
}

// --- user-facing operations ---

func (s *NotificationService) List(userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	return s.notificationRepo.FindUserNotifications(userID, repositories.NotificationCriteria{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *NotificationService) MarkRead(userID, notificationID string) error {
	notification, err := s.notificationRepo.FindByID(notificationID)
	if err != nil {
		return apperrors.NewNotFoundError("notification", "notification not found")
	}
	if notification.UserID != userID {
		return apperrors.NewForbiddenError("notification belongs to another user")
	}
	return s.notificationRepo.MarkAsRead(notificationID)
}

func (s *NotificationService) MarkAllRead(userID string) error {
	return s.notificationRepo.MarkAllAsRead(userID)
}

func (s *NotificationService) Delete(userID, notificationID string) error {
	notification, err := s.notificationRepo.FindByID(notificationID)
	if err != nil {
		return apperrors.NewNotFoundError("notification", "notification not found")
	}
	if notification.UserID != userID {
		return apperrors.NewForbiddenError("notification belongs to another user")
	}
	return s.notificationRepo.Delete(notificationID)
}

func (s *NotificationService) UnreadCount(userID string) (int64, error) {
	return s.notificationRepo.GetUnreadCount(userID)
}
