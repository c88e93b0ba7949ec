package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// DiaryStats summarizes a user's diary for conditional responses.
type DiaryStats struct {
	Entries   int64
	UpdatedAt time.Time // zero when Entries is 0
}

// DiaryStatsFor counts uuid's diary entries and finds the newest UpdatedAt.
func DiaryStatsFor(ctx context.Context, db *gorm.DB, uuid string) (DiaryStats, error) {
	scope := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.DiaryEntry{}).Where("uuid = ?", uuid)
	}

	var st DiaryStats
	if err := scope().Count(&st.Entries).Error; err != nil {
		return DiaryStats{}, err
	}
	if st.Entries == 0 {
		return st, nil
	}

	// sqlite hands MAX(updated_at) back as TEXT; read the newest row instead.
	var newest domain.DiaryEntry
	if err := scope().Select("updated_at").Order("updated_at DESC").Take(&newest).Error; err != nil {
		return DiaryStats{}, err
	}
	st.UpdatedAt = newest.UpdatedAt
	return st, nil
}
