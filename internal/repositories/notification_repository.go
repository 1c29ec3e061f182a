package repositories

import (
	"errors"
	"time"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification type constants shared by services and the realtime fanout.
const (
	NotificationTypeNewProposal    = "new_proposal"
	NotificationTypeProposalStatus = "proposal_status"
	NotificationTypeNewMessage     = "new_message"
	NotificationTypeJobStatus      = "job_status"
	NotificationTypePayout         = "payout"
)

type NotificationCriteria struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationRepository interface {
	Create(notification *models.Notification) error
	FindByID(id string) (*models.Notification, error)
	FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	MarkAsRead(notificationID string) error
	MarkAllAsRead(userID string) error
	Delete(id string) error
	GetUnreadCount(userID string) (int64, error)
	DeleteReadOlderThan(olderThan time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *notificationRepository) FindByID(id string) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.First(&notification, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	q := r.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if criteria.UnreadOnly {
		q = q.Where("is_read = false")
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(criteria.Offset).Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) MarkAsRead(notificationID string) error {
	now := time.Now()
	return r.db.Model(&models.Notification{}).Where("id = ?", notificationID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
}

func (r *notificationRepository) MarkAllAsRead(userID string) error {
	now := time.Now()
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
}

func (r *notificationRepository) Delete(id string) error {
	return r.db.Delete(&models.Notification{}, "id = ?", id).Error
}

func (r *notificationRepository) GetUnreadCount(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) DeleteReadOlderThan(olderThan time.Time) (int64, error) {
	result := r.db.Where("is_read = true AND read_at < ?", olderThan).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
