// Package services – ChatService
//
// This file implements the conversation state machine. Every user message
// increments the exchange counter. On ordinary turns the assistant replies in
// character and awards engagement points. Every Cycle-th turn the history is
// analyzed to settle the user's mood and, the first time, to bind a companion
// animal; the history then resets to the assistant reply alone.
//
// Turns for one user are serialized: the counter, history, and point total
// are read and written under a per-user lock. Persistence after the reply is
// best-effort; failures are logged and the reply is still returned.
//
// Observability: Chat is OpenTelemetry-instrumented; spans carry the user
// key and whether the turn was an assignment turn.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/conversation"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

// Companion is the generation surface used by the chat and diary services.
// *llm.Client satisfies it.
type Companion interface {
	Reply(ctx context.Context, message string, history []domain.Turn, animal domain.Character, mood domain.Emotion) (llm.Reply, error)
	Analyze(ctx context.Context, history []domain.Turn) (llm.Analysis, error)
	Summarize(ctx context.Context, chatLog string) (llm.Diary, error)
}

// DefaultCycle is the number of exchanges between assignment turns.
const DefaultCycle = 4

// ChatService drives one exchange of the companion conversation.
type ChatService struct {
	DB            *gorm.DB
	Users         UserRepo
	LLM           Companion
	Conversations conversation.Store

	// Cycle is the assignment period; values below 1 fall back to DefaultCycle.
	Cycle        int
	StoreTimeout time.Duration

	locks conversation.KeyedMutex
}

// NewChatService constructs a ChatService with the default cycle and store
// budget.
func NewChatService(db *gorm.DB, users UserRepo, companion Companion, store conversation.Store) *ChatService {
	return &ChatService{
		DB:            db,
		Users:         users,
		LLM:           companion,
		Conversations: store,
		Cycle:         DefaultCycle,
		StoreTimeout:  defaultStoreTimeout,
	}
}

// ChatInput is one user message.
type ChatInput struct {
	UUID    string
	Message string
	// Emotion optionally overrides the mood used for this turn. Unknown
	// values are coerced to neutral.
	Emotion string
}

// ChatResult is the outcome of one exchange.
type ChatResult struct {
	Response string
	// Emotion is empty when the user has no stored mood and none was given.
	Emotion domain.Emotion
	// Animal is set on assignment turns, and on regular turns where the
	// caller supplied an emotion.
	Animal domain.Character
	// Points awarded for this exchange.
	Points int
	// Threshold marks an assignment turn.
	Threshold bool
}

func (s *ChatService) cycle() int {
	if s.Cycle < 1 {
		return DefaultCycle
	}
	return s.Cycle
}

func (s *ChatService) budget() time.Duration {
	if s.StoreTimeout <= 0 {
		return defaultStoreTimeout
	}
	return s.StoreTimeout
}

// Chat processes one user message and returns the companion reply.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Chat")
	defer span.End()

	uuid := domain.NormalizeUUID(in.UUID)
	msg := strings.TrimSpace(in.Message)
	if uuid == "" {
		return nil, missing("uuid")
	}
	if msg == "" {
		return nil, missing("message")
	}
	var supplied domain.Emotion
	if strings.TrimSpace(in.Emotion) != "" {
		supplied = domain.CoerceEmotion(in.Emotion)
	}
	span.SetAttributes(attribute.String("user.uuid", uuid))

	unlock := s.locks.Lock(uuid)
	defer unlock()

	user, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx).With().Str("uuid", uuid).Logger()

	st, err := s.Conversations.Load(ctx, uuid)
	if err != nil {
		log.Error().Err(err).Msg("load conversation state, starting fresh")
		st = conversation.State{UUID: uuid}
	}
	st.UUID = uuid
	prior := slices.Clone(st.History)
	st.Count++
	st.Append(domain.RoleUser, msg)

	var res *ChatResult
	if st.Count%s.cycle() == 0 {
		span.SetAttributes(attribute.Bool("chat.assignment", true))
		res, err = s.assignmentTurn(ctx, user, &st, msg, prior, supplied)
	} else {
		res, err = s.regularTurn(ctx, user, &st, msg, prior, supplied)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.Conversations.Save(ctx, st); err != nil {
		log.Error().Err(err).Int("count", st.Count).Msg("save conversation state")
	}
	s.appendChat(ctx, uuid, msg, res.Response)

	log.Debug().Int("count", st.Count).Bool("threshold", res.Threshold).Int("points", res.Points).Msg("chat turn")
	return res, nil
}

func (s *ChatService) regularTurn(ctx context.Context, user *domain.User, st *conversation.State, msg string, prior []domain.Turn, supplied domain.Emotion) (*ChatResult, error) {
	mood := supplied
	if mood == "" {
		mood = user.Mood()
	}

	reply, err := s.reply(ctx, msg, prior, user.Animal(), mood)
	if err != nil {
		return nil, err
	}
	st.Append(domain.RoleAssistant, reply.Text)

	fields := map[string]any{"points": user.Points + reply.Points}
	if supplied != "" && user.Animal() != "" {
		fields["animal_emotion"] = string(supplied)
	}
	s.updateUser(ctx, user.UUID, fields)

	res := &ChatResult{Response: reply.Text, Emotion: mood, Points: reply.Points}
	if supplied != "" {
		res.Animal = user.Animal()
	}
	return res, nil
}

func (s *ChatService) assignmentTurn(ctx context.Context, user *domain.User, st *conversation.State, msg string, prior []domain.Turn, supplied domain.Emotion) (*ChatResult, error) {
	log := zerolog.Ctx(ctx)

	analysis, err := s.LLM.Analyze(ctx, st.History)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, ErrUpstreamTimeout
		}
		log.Warn().Err(err).Str("uuid", user.UUID).Msg("conversation analysis failed, using defaults")
		analysis = llm.Analysis{Emotion: domain.Neutral, Animal: domain.Dog}
	}

	mood := supplied
	if mood == "" {
		mood = analysis.Emotion
	}
	animal := user.Animal()
	bind := animal == ""
	if bind {
		animal = analysis.Animal
	}

	reply, err := s.reply(ctx, msg, prior, animal, mood)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"animal_emotion": string(mood),
		"points":         user.Points + reply.Points,
	}
	if bind {
		fields["animal_type"] = string(animal)
	}
	s.updateUser(ctx, user.UUID, fields)

	st.History = []domain.Turn{{Role: domain.RoleAssistant, Content: reply.Text}}

	return &ChatResult{
		Response:  reply.Text,
		Emotion:   mood,
		Animal:    animal,
		Points:    reply.Points,
		Threshold: true,
	}, nil
}

// reply asks the companion for an answer. A provider timeout aborts the
// turn; any other failure degrades to a canned reply worth the default
// points.
func (s *ChatService) reply(ctx context.Context, msg string, prior []domain.Turn, animal domain.Character, mood domain.Emotion) (llm.Reply, error) {
	r, err := s.LLM.Reply(ctx, msg, prior, animal, mood)
	if err == nil {
		return r, nil
	}
	if errors.Is(err, llm.ErrTimeout) {
		return llm.Reply{}, ErrUpstreamTimeout
	}
	zerolog.Ctx(ctx).Warn().Err(err).Msg("reply generation failed, using fallback")
	return llm.Reply{Text: fallbackReply(mood), Points: llm.DefaultPoints}, nil
}

func fallbackReply(mood domain.Emotion) string {
	if mood == "" {
		mood = domain.Neutral
	}
	return fmt.Sprintf("I understand you're feeling %s. How can I help you today?", mood)
}

func (s *ChatService) updateUser(ctx context.Context, uuid string, fields map[string]any) {
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	if err := s.Users.UpdateUser(cctx, s.DB, uuid, fields); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("uuid", uuid).Msg("update user after chat")
	}
}

func (s *ChatService) appendChat(ctx context.Context, uuid, input, output string) {
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	if _, err := repo.AppendChat(cctx, s.DB, uuid, input, output); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("uuid", uuid).Msg("append chat log")
	}
}
