package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/astevko/htmx-message-board/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListRecent returns every message newest first. Identical creation
// instants are ordered by descending id, which matches insertion order.
func (r *MessageRepository) ListRecent() ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Order("created_at DESC, id DESC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) Search(term string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("text ILIKE ?", "%"+term+"%").Order("created_at DESC, id DESC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("search messages failed: %w", err)
	}
	return messages, nil
}
