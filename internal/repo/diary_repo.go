package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// UpsertDiary inserts the entry for (uuid, date) or replaces its summary
// and emotion when one already exists.
func UpsertDiary(ctx context.Context, db *gorm.DB, userUUID, date, summary, emotion string) (*domain.DiaryEntry, error) {
	now := time.Now().UTC()
	d := &domain.DiaryEntry{
		UUID:      userUUID,
		Date:      date,
		Summary:   summary,
		Emotion:   emotion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "emotion", "updated_at"}),
	}).Create(d).Error
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDiary fetches one day's entry, or ErrNotFound.
func GetDiary(ctx context.Context, db *gorm.DB, userUUID, date string) (*domain.DiaryEntry, error) {
	var d domain.DiaryEntry
	if err := db.WithContext(ctx).Where("uuid = ? AND date = ?", userUUID, date).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDiaries returns all entries of userUUID, newest date first.
func ListDiaries(ctx context.Context, db *gorm.DB, userUUID string) ([]domain.DiaryEntry, error) {
	var out []domain.DiaryEntry
	err := db.WithContext(ctx).
		Where("uuid = ?", userUUID).
		Order("date DESC").
		Find(&out).Error
	return out, err
}
