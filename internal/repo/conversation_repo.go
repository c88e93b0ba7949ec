package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// GetConversation loads the persisted state for userUUID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, userUUID string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("uuid = ?", userUUID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConversation writes the full state, inserting on first use.
func SaveConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	c.UpdatedAt = time.Now().UTC()
	if c.History == "" {
		c.History = "[]"
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "history", "updated_at"}),
	}).Create(c).Error
}

// DeleteConversation drops the state for userUUID. Missing rows are not an error.
func DeleteConversation(ctx context.Context, db *gorm.DB, userUUID string) error {
	return db.WithContext(ctx).Where("uuid = ?", userUUID).Delete(&domain.Conversation{}).Error
}
