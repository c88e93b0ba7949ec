// Package conversation persists the per-user conversation state that drives
// the assignment cycle: how many exchanges a user has had and the rolling
// history since the last reset.
//
// Three backends implement Store:
//
//   - Memory: process-local map; state is lost on restart.
//   - Gorm:   the conversations table of the relational store.
//   - Redis:  a JSON value per user, optionally expiring.
//
// Stores are safe for concurrent use, but Load/Save pairs are not atomic;
// callers serialise updates for one user with a KeyedMutex.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// State is one user's conversation record.
type State struct {
	UUID    string        `json:"uuid"`
	Count   int           `json:"count"`
	History []domain.Turn `json:"history"`
}

// Append adds a turn to the history.
func (s *State) Append(role domain.Role, content string) {
	s.History = append(s.History, domain.Turn{Role: role, Content: content})
}

// Store loads and saves conversation state by user key.
type Store interface {
	// Load returns the saved state, or a zero State for unknown users.
	Load(ctx context.Context, uuid string) (State, error)
	// Save replaces the state for st.UUID.
	Save(ctx context.Context, st State) error
	// Delete forgets a user. Unknown users are not an error.
	Delete(ctx context.Context, uuid string) error
}

// New builds the backend named by cfg.Store. The db handle is used by the
// "db" backend only.
func New(cfg config.ConversationConfig, db *gorm.DB) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemory(), nil
	case "db":
		if db == nil {
			return nil, errors.New("conversation: db backend needs a database handle")
		}
		return NewGorm(db), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedis(rdb, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("conversation: unknown store %q", cfg.Store)
	}
}
