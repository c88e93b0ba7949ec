package conversation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

// Gorm keeps state in the conversations table.
type Gorm struct {
	DB *gorm.DB
}

// NewGorm returns a Store over db. The conversations table must be migrated.
func NewGorm(db *gorm.DB) *Gorm { return &Gorm{DB: db} }

// Load implements Store.
func (g *Gorm) Load(ctx context.Context, uuid string) (State, error) {
	rec, err := repo.GetConversation(ctx, g.DB, uuid)
	if errors.Is(err, repo.ErrNotFound) {
		return State{UUID: uuid}, nil
	}
	if err != nil {
		return State{}, err
	}
	turns, err := rec.Turns()
	if err != nil {
		return State{}, fmt.Errorf("decode history for %s: %w", uuid, err)
	}
	return State{UUID: uuid, Count: rec.Count, History: turns}, nil
}

// Save implements Store.
func (g *Gorm) Save(ctx context.Context, st State) error {
	rec := &domain.Conversation{UUID: st.UUID, Count: st.Count}
	if err := rec.SetTurns(st.History); err != nil {
		return err
	}
	return repo.SaveConversation(ctx, g.DB, rec)
}

// Delete implements Store.
func (g *Gorm) Delete(ctx context.Context, uuid string) error {
	return repo.DeleteConversation(ctx, g.DB, uuid)
}
