// Package services – DiaryService
//
// This file implements diary generation and retrieval. A diary is one
// summary per user per local calendar day, written by the companion from
// that day's chat log and tagged with a dominant emotion. Regenerating a day
// replaces its entry.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

// DateLayout is the diary date format.
const DateLayout = "2006-01-02"

const (
	emptyChatLog  = "No chat messages found for today."
	diaryFallback = "Failed to generate diary summary."
)

// Summarizer is the part of Companion the diary needs.
type Summarizer interface {
	Summarize(ctx context.Context, chatLog string) (llm.Diary, error)
}

// DiaryService generates and lists diary entries.
type DiaryService struct {
	DB           *gorm.DB
	Users        UserRepo
	LLM          Summarizer
	StoreTimeout time.Duration

	// Now returns the current time; its location decides the day
	// boundaries. Defaults to time.Now.
	Now func() time.Time
}

// NewDiaryService constructs a DiaryService with the default store budget.
func NewDiaryService(db *gorm.DB, users UserRepo, s Summarizer) *DiaryService {
	return &DiaryService{DB: db, Users: users, LLM: s, StoreTimeout: defaultStoreTimeout, Now: time.Now}
}

func (s *DiaryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *DiaryService) budget() time.Duration {
	if s.StoreTimeout <= 0 {
		return defaultStoreTimeout
	}
	return s.StoreTimeout
}

// DayBounds returns the [start, end) instants of the calendar day that
// contains t, in t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Generate writes today's diary for uuid.
func (s *DiaryService) Generate(ctx context.Context, uuid string) (*domain.DiaryEntry, error) {
	return s.GenerateFor(ctx, uuid, s.now())
}

// GenerateFor writes the diary for the calendar day containing day.
func (s *DiaryService) GenerateFor(ctx context.Context, uuid string, day time.Time) (*domain.DiaryEntry, error) {
	ctx, span := otel.Tracer("services/DiaryService").Start(ctx, "Generate")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return nil, missing("uuid")
	}
	start, end := DayBounds(day)
	date := start.Format(DateLayout)
	span.SetAttributes(attribute.String("user.uuid", uuid), attribute.String("diary.date", date))

	if _, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid); err != nil {
		return nil, err
	}

	chatLog, err := s.chatLog(ctx, uuid, start, end)
	if err != nil {
		return nil, err
	}

	d, err := s.LLM.Summarize(ctx, chatLog)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			span.SetStatus(codes.Error, "summarize timeout")
			return nil, ErrUpstreamTimeout
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("uuid", uuid).Msg("diary summary failed, storing fallback")
		d = llm.Diary{Summary: diaryFallback, Emotion: domain.Neutral}
	}

	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	entry, err := repo.UpsertDiary(cctx, s.DB, uuid, date, d.Summary, string(domain.NormalizeDiaryEmotion(string(d.Emotion))))
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return entry, nil
}

func (s *DiaryService) chatLog(ctx context.Context, uuid string, start, end time.Time) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	rows, err := repo.ListChatsBetween(cctx, s.DB, uuid, start.UTC(), end.UTC())
	if err != nil {
		return "", storeErr(cctx, err)
	}
	if len(rows) == 0 {
		return emptyChatLog, nil
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString("User: ")
		b.WriteString(r.UserInput)
		b.WriteString("\nAI: ")
		b.WriteString(r.ChatOutput)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// List returns the user's diaries, newest date first.
func (s *DiaryService) List(ctx context.Context, uuid string) ([]domain.DiaryEntry, error) {
	ctx, span := otel.Tracer("services/DiaryService").Start(ctx, "List")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	if uuid == "" {
		return nil, missing("uuid")
	}
	if _, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	out, err := repo.ListDiaries(cctx, s.DB, uuid)
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return out, nil
}

// Get returns uuid's entry for date (YYYY-MM-DD).
func (s *DiaryService) Get(ctx context.Context, uuid, date string) (*domain.DiaryEntry, error) {
	ctx, span := otel.Tracer("services/DiaryService").Start(ctx, "Get")
	defer span.End()

	uuid = domain.NormalizeUUID(uuid)
	date = strings.TrimSpace(date)
	switch {
	case uuid == "":
		return nil, missing("uuid")
	case date == "":
		return nil, missing("date")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}
	span.SetAttributes(attribute.String("user.uuid", uuid), attribute.String("diary.date", date))

	if _, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	entry, err := repo.GetDiary(cctx, s.DB, uuid, date)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDiaryNotFound
	}
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return entry, nil
}

// Stats returns the diary count and latest update time for uuid, used for
// conditional GETs.
func (s *DiaryService) Stats(ctx context.Context, uuid string) (int64, *time.Time, error) {
	uuid = domain.NormalizeUUID(uuid)
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	st, err := repo.DiaryStatsFor(cctx, s.DB, uuid)
	if err != nil {
		return 0, nil, storeErr(cctx, err)
	}
	if st.Entries == 0 {
		return 0, nil, nil
	}
	return st.Entries, &st.UpdatedAt, nil
}

// CustomInput is a caller-written diary entry.
type CustomInput struct {
	UUID    string
	Date    string
	Summary string
	Emotion string
}

// Custom stores a caller-written diary entry for a specific date.
func (s *DiaryService) Custom(ctx context.Context, in CustomInput) (*domain.DiaryEntry, error) {
	ctx, span := otel.Tracer("services/DiaryService").Start(ctx, "Custom",
		trace.WithAttributes(attribute.String("diary.date", in.Date)),
	)
	defer span.End()

	uuid := domain.NormalizeUUID(in.UUID)
	date := strings.TrimSpace(in.Date)
	summary := strings.TrimSpace(in.Summary)
	switch {
	case uuid == "":
		return nil, missing("uuid")
	case date == "":
		return nil, missing("date")
	case summary == "":
		return nil, missing("summary")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}
	if _, err := lookupUser(ctx, s.DB, s.Users, s.budget(), uuid); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	entry, err := repo.UpsertDiary(cctx, s.DB, uuid, date, summary, string(domain.NormalizeDiaryEmotion(in.Emotion)))
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return entry, nil
}

// PendingUsers lists users who chatted on the day containing day and have no
// diary for it yet.
func (s *DiaryService) PendingUsers(ctx context.Context, day time.Time) ([]string, error) {
	start, end := DayBounds(day)
	cctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()
	ids, err := repo.UsersPendingDiary(cctx, s.DB, start.UTC(), end.UTC(), start.Format(DateLayout))
	if err != nil {
		return nil, storeErr(cctx, err)
	}
	return ids, nil
}
