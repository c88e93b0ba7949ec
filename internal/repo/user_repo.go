package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts a user with onboarding defaults (level 1, no points,
// no animal, not notified).
func CreateUser(ctx context.Context, db *gorm.DB, uuid, nickname string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UUID:        uuid,
		Nickname:    nickname,
		AnimalLevel: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, uuid string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("uuid = ?", uuid).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser applies a partial column update. Keys are column names.
// Returns ErrNotFound when no row matched.
func UpdateUser(ctx context.Context, db *gorm.DB, uuid string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	// fields belongs to the caller; stamp a copy
	upd := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		upd[k] = v
	}
	upd["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("uuid = ?", uuid).
		Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes the user together with its chat log, diaries, and
// persisted conversation state in one transaction. Returns ErrNotFound if
// the user row did not exist (nothing is deleted in that case).
func DeleteUser(ctx context.Context, db *gorm.DB, uuid string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("uuid = ?", uuid).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, m := range []any{&domain.ChatMessage{}, &domain.DiaryEntry{}, &domain.Conversation{}} {
			if err := tx.Where("uuid = ?", uuid).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Users adapts the user free functions to the method set the service layer
// depends on. The zero value is ready to use.
type Users struct{}

// CreateUser proxies CreateUser.
func (Users) CreateUser(ctx context.Context, db *gorm.DB, uuid, nickname string) (*domain.User, error) {
	return CreateUser(ctx, db, uuid, nickname)
}

// GetUser proxies GetUser.
func (Users) GetUser(ctx context.Context, db *gorm.DB, uuid string) (*domain.User, error) {
	return GetUser(ctx, db, uuid)
}

// UpdateUser proxies UpdateUser.
func (Users) UpdateUser(ctx context.Context, db *gorm.DB, uuid string, fields map[string]any) error {
	return UpdateUser(ctx, db, uuid, fields)
}

// DeleteUser proxies DeleteUser.
func (Users) DeleteUser(ctx context.Context, db *gorm.DB, uuid string) error {
	return DeleteUser(ctx, db, uuid)
}
