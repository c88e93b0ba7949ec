package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, uuid string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), db, uuid, "nick")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// ----- Stub companion -----

type stubCompanion struct {
	mu sync.Mutex

	reply    llm.Reply
	replyErr error

	analysis   llm.Analysis
	analyzeErr error

	diary    llm.Diary
	diaryErr error

	// captured
	replyCalls   int
	analyzeCalls int
	lastMessage  string
	lastHistory  []domain.Turn
	lastAnimal   domain.Character
	lastMood     domain.Emotion
	analyzed     []domain.Turn
	lastLog      string
}

func (s *stubCompanion) Reply(_ context.Context, message string, history []domain.Turn, animal domain.Character, mood domain.Emotion) (llm.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyCalls++
	s.lastMessage = message
	s.lastHistory = append([]domain.Turn(nil), history...)
	s.lastAnimal = animal
	s.lastMood = mood
	return s.reply, s.replyErr
}

func (s *stubCompanion) Analyze(_ context.Context, history []domain.Turn) (llm.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzeCalls++
	s.analyzed = append([]domain.Turn(nil), history...)
	return s.analysis, s.analyzeErr
}

func (s *stubCompanion) Summarize(_ context.Context, chatLog string) (llm.Diary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLog = chatLog
	return s.diary, s.diaryErr
}

// ----- Fake user repos -----

// slowUsers blocks every call until the context gives up.
type slowUsers struct{}

func (slowUsers) CreateUser(ctx context.Context, _ *gorm.DB, _, _ string) (*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowUsers) GetUser(ctx context.Context, _ *gorm.DB, _ string) (*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowUsers) UpdateUser(ctx context.Context, _ *gorm.DB, _ string, _ map[string]any) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowUsers) DeleteUser(ctx context.Context, _ *gorm.DB, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// recordingUsers wraps repo.Users and captures update payloads.
type recordingUsers struct {
	repo.Users
	mu      sync.Mutex
	updates []map[string]any
}

func (r *recordingUsers) UpdateUser(ctx context.Context, db *gorm.DB, uuid string, fields map[string]any) error {
	r.mu.Lock()
	r.updates = append(r.updates, fields)
	r.mu.Unlock()
	return r.Users.UpdateUser(ctx, db, uuid, fields)
}

func (r *recordingUsers) last() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}
