// Package services – UserService
//
// This file implements onboarding and the profile mutations behind the
// /user, /character and /emotion routes. Every store call runs under the
// configured store budget; exceeding it surfaces as ErrUpstreamTimeout.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/conversation"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// UserRepo defines the persistence contract for users.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, uuid, nickname string) (*domain.User, error)
	GetUser(ctx context.Context, db *gorm.DB, uuid string) (*domain.User, error)
	UpdateUser(ctx context.Context, db *gorm.DB, uuid string, fields map[string]any) error
	DeleteUser(ctx context.Context, db *gorm.DB, uuid string) error
}

const defaultStoreTimeout = 3 * time.Second

// UserService owns user lifecycle and profile updates.
type UserService struct {
	DB    *gorm.DB
	Users UserRepo
	// Conversations is cleared when a user is deleted. Optional.
	Conversations conversation.Store
	StoreTimeout  time.Duration
}

// NewUserService constructs a UserService with the default store budget.
func NewUserService(db *gorm.DB, users UserRepo, conv conversation.Store) *UserService {
	return &UserService{DB: db, Users: users, Conversations: conv, StoreTimeout: defaultStoreTimeout}
}

// CharacterResult describes the outcome of a character selection.
type CharacterResult struct {
	// Assigned is true when this call bound the animal.
	Assigned bool
	Animal   domain.Character
	Emotion  domain.Emotion
	Level    int
	Points   int
}

func (s *UserService) budget() time.Duration {
	if s.StoreTimeout <= 0 {
		return defaultStoreTimeout
	}
	return s.StoreTimeout
}

// Onboard returns the existing user for uuid, or creates it with defaults.
// created reports which of the two happened.
func (s *UserService) Onboard(ctx context.Context, uuid, nickname string) (u *domain.User, created bool, err error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Onboard")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	nickname = strings.TrimSpace(nickname)
	if uuid == "" {
		return nil, false, missing("uuid")
	}
	if nickname == "" {
		return nil, false, missing("nickname")
	}
	span.SetAttributes(attribute.String("user.uuid", uuid))

	u, err = lookupUser(ctx, s.DB, s.Users, s.budget(), uuid)
	if err == nil {
		return u, false, nil
	}
	if err != ErrUserNotFound {
		return nil, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	u, err = s.Users.CreateUser(cctx, s.DB, uuid, nickname)
	if err != nil {
		return nil, false, storeErr(cctx, err)
	}
	zerolog.Ctx(ctx).Info().Str("uuid", uuid).Msg("user onboarded")
	return u, true, nil
}

// Get returns the user for uuid.
func (s *UserService) Get(ctx context.Context, uuid string) (*domain.User, error) {
	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return nil, missing("uuid")
	}
	return lookupUser(ctx, s.DB, s.Users, s.budget(), uuid)
}

// Delete removes the user and everything it owns. Conversation state is
// cleared best-effort after the rows are gone.
func (s *UserService) Delete(ctx context.Context, uuid string) error {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Delete")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return missing("uuid")
	}
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	if err := s.Users.DeleteUser(cctx, s.DB, uuid); err != nil {
		return storeErr(cctx, err)
	}
	if s.Conversations != nil {
		if err := s.Conversations.Delete(ctx, uuid); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("uuid", uuid).Msg("clear conversation state")
		}
	}
	return nil
}

// AssignCharacter binds a random animal when the user has none, storing the
// chosen emotion alongside. When an animal is already bound only the
// emotion changes.
func (s *UserService) AssignCharacter(ctx context.Context, uuid, emotion string) (*CharacterResult, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "AssignCharacter")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	mood, err := requireEmotion(emotion)
	if err != nil {
		return nil, err
	}
	if uuid == "" {
		return nil, missing("user_uuid")
	}

	u, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid)
	if err != nil {
		return nil, err
	}

	if u.Animal() != "" {
		if err := s.update(ctx, uuid, map[string]any{"animal_emotion": string(mood)}); err != nil {
			return nil, err
		}
		return &CharacterResult{Animal: u.Animal(), Emotion: mood, Level: u.AnimalLevel, Points: u.Points}, nil
	}

	animal := domain.RandomCharacter()
	span.SetAttributes(attribute.String("animal", string(animal)))
	err = s.update(ctx, uuid, map[string]any{
		"animal_type":    string(animal),
		"animal_emotion": string(mood),
		"animal_level":   1,
	})
	if err != nil {
		return nil, err
	}
	return &CharacterResult{Assigned: true, Animal: animal, Emotion: mood, Level: 1, Points: u.Points}, nil
}

// UpdateEmotion stores a new pet mood.
func (s *UserService) UpdateEmotion(ctx context.Context, uuid, emotion string) (domain.Emotion, error) {
	mood, err := requireEmotion(emotion)
	if err != nil {
		return "", err
	}
	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return "", missing("user_uuid")
	}
	if err := s.update(ctx, uuid, map[string]any{"animal_emotion": string(mood)}); err != nil {
		return "", err
	}
	return mood, nil
}

// UpdatePoints overwrites the stored point total.
func (s *UserService) UpdatePoints(ctx context.Context, uuid string, points int) error {
	if points < 0 {
		return ErrInvalidValue
	}
	return s.set(ctx, uuid, "points", points)
}

// UpdateLevel overwrites the pet level.
func (s *UserService) UpdateLevel(ctx context.Context, uuid string, level int) error {
	if level < 1 {
		return ErrInvalidValue
	}
	return s.set(ctx, uuid, "animal_level", level)
}

// UpdateName changes the nickname.
func (s *UserService) UpdateName(ctx context.Context, uuid, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return missing("nickname")
	}
	return s.set(ctx, uuid, "nickname", nickname)
}

func (s *UserService) set(ctx context.Context, uuid, column string, value any) error {
	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return missing("uuid")
	}
	return s.update(ctx, uuid, map[string]any{column: value})
}

func (s *UserService) update(ctx context.Context, uuid string, fields map[string]any) error {
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	return storeErr(cctx, s.Users.UpdateUser(cctx, s.DB, uuid, fields))
}

func requireEmotion(s string) (domain.Emotion, error) {
	if strings.TrimSpace(s) == "" {
		return "", missing("emotion")
	}
	e, ok := domain.ParseEmotion(s)
	if !ok {
		return "", ErrInvalidEmotion
	}
	return e, nil
}

// lookupUser fetches a user under the store budget.
func lookupUser(ctx context.Context, db *gorm.DB, users UserRepo, budget time.Duration, uuid string) (*domain.User, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "lookupUser",
		trace.WithAttributes(attribute.String("user.uuid", uuid)),
	)
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	u, err := users.GetUser(cctx, db, uuid)
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return u, nil
}
