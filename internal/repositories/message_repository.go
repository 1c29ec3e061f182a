package repositories

import (
	"errors"
	"time"

	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrDialogNotFound  = errors.New("dialog not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("user is not a dialog participant")
)

type MessageRepository interface {
	CreateDialog(dialog *models.Dialog, participantIDs []string) error
	FindDialogByID(id string) (*models.Dialog, error)
	FindDialogBetween(jobID, userA, userB string) (*models.Dialog, error)
	FindUserDialogs(userID string) ([]models.Dialog, error)
	FindDialogParticipants(dialogID string) ([]models.DialogParticipant, error)
	IsParticipant(dialogID, userID string) (bool, error)

	CreateMessage(message *models.Message) error
	FindMessageByID(id string) (*models.Message, error)
	FindDialogMessages(dialogID string, limit, offset int) ([]models.Message, int64, error)
	FindUserMessages(userID string) ([]models.Message, error)
	MarkMessageRead(messageID string) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateDialog(dialog *models.Dialog, participantIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dialog).Error; err != nil {
			return err
		}
		for _, userID := range participantIDs {
			participant := &models.DialogParticipant{
				DialogID: dialog.ID,
				UserID:   userID,
			}
			if err := tx.Create(participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *messageRepository) FindDialogByID(id string) (*models.Dialog, error) {
	var dialog models.Dialog
	if err := r.db.First(&dialog, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDialogNotFound
		}
		return nil, err
	}
	return &dialog, nil
}

func (r *messageRepository) FindDialogBetween(jobID, userA, userB string) (*models.Dialog, error) {
	var dialog models.Dialog
	err := r.db.
		Joins("JOIN dialog_participants pa ON pa.dialog_id = dialogs.id AND pa.user_id = ?", userA).
		Joins("JOIN dialog_participants pb ON pb.dialog_id = dialogs.id AND pb.user_id = ?", userB).
		Where("dialogs.job_id = ?", jobID).
		First(&dialog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDialogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dialog, nil
}

func (r *messageRepository) FindUserDialogs(userID string) ([]models.Dialog, error) {
	var dialogs []models.Dialog
	err := r.db.
		Joins("JOIN dialog_participants p ON p.dialog_id = dialogs.id").
		Where("p.user_id = ?", userID).
		Order("dialogs.last_message_at DESC NULLS LAST").
		Find(&dialogs).Error
	return dialogs, err
}

func (r *messageRepository) FindDialogParticipants(dialogID string) ([]models.DialogParticipant, error) {
	var participants []models.DialogParticipant
	err := r.db.Where("dialog_id = ?", dialogID).Find(&participants).Error
	return participants, err
}

func (r *messageRepository) IsParticipant(dialogID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.DialogParticipant{}).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepository) CreateMessage(message *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&models.Dialog{}).Where("id = ?", message.DialogID).
			Update("last_message_at", &now).Error
	})
}

func (r *messageRepository) FindMessageByID(id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindDialogMessages(dialogID string, limit, offset int) ([]models.Message, int64, error) {
	var messages []models.Message
	var total int64

	q := r.db.Model(&models.Message{}).Where("dialog_id = ?", dialogID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(normalizeLimit(limit)).Offset(offset).Find(&messages).Error
	return messages, total, err
}

func (r *messageRepository) FindUserMessages(userID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("recipient_id = ? OR sender_id = ?", userID, userID).
		Order("created_at DESC").Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkMessageRead(messageID string) error {
	now := time.Now()
	return r.db.Model(&models.Message{}).Where("id = ?", messageID).
		Update("read_at", &now).Error
}
