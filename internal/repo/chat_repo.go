// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the chat log.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Functions:
//
//   - AppendChat(ctx, db, uuid, input, output) -> *domain.ChatMessage, error
//     Inserts one exchange with a UUID primary key and UTC timestamp.
//
//   - ListChatsBetween(ctx, db, uuid, from, to) -> []domain.ChatMessage, error
//     Returns a user's exchanges in [from, to), oldest first.
//
//   - CountChats(ctx, db, uuid) -> (int64, error)
//     Returns the total number of exchanges logged for the user.
//
//   - UsersPendingDiary(ctx, db, from, to, date) -> []string, error
//     Returns users that chatted in [from, to) but have no diary for date.
//
// Timestamps are always written in UTC so range predicates compare the
// same representation on SQLite, where times are stored as text.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// AppendChat inserts one user/assistant exchange.
func AppendChat(ctx context.Context, db *gorm.DB, userUUID, input, output string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:         uuid.NewString(),
		UUID:       userUUID,
		UserInput:  input,
		ChatOutput: output,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListChatsBetween returns the exchanges of userUUID created in [from, to),
// ordered deterministically (CreatedAt ASC, ID ASC).
func ListChatsBetween(ctx context.Context, db *gorm.DB, userUUID string, from, to time.Time) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("uuid = ? AND created_at >= ? AND created_at < ?", userUUID, from.UTC(), to.UTC()).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of exchanges logged for userUUID.
func CountChats(ctx context.Context, db *gorm.DB, userUUID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("uuid = ?", userUUID).
		Count(&total).Error
	return total, err
}

// UsersPendingDiary returns the distinct users with at least one exchange in
// [from, to) and no diary entry for date.
func UsersPendingDiary(ctx context.Context, db *gorm.DB, from, to time.Time, date string) ([]string, error) {
	done := db.Model(&domain.DiaryEntry{}).Select("uuid").Where("date = ?", date)
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Distinct("uuid").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Where("uuid NOT IN (?)", done).
		Order("uuid").
		Pluck("uuid", &out).Error
	return out, err
}
