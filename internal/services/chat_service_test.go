package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emogotchi/emogotchi-backend/internal/conversation"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

func newChatSvc(t *testing.T, comp *stubCompanion) (*ChatService, *recordingUsers, conversation.Store) {
	t.Helper()
	db := newServiceDB(t)
	seedUser(t, db, "U1")
	users := &recordingUsers{}
	store := conversation.NewMemory()
	return NewChatService(db, users, comp, store), users, store
}

func say(t *testing.T, s *ChatService, msg string) *ChatResult {
	t.Helper()
	res, err := s.Chat(context.Background(), ChatInput{UUID: "u1", Message: msg})
	if err != nil {
		t.Fatalf("Chat(%q): %v", msg, err)
	}
	return res
}

func TestChat_Validation(t *testing.T) {
	s, _, _ := newChatSvc(t, &stubCompanion{})
	if _, err := s.Chat(context.Background(), ChatInput{UUID: " ", Message: "hi"}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("want ErrMissingField for uuid, got %v", err)
	}
	if _, err := s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "  "}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("want ErrMissingField for message, got %v", err)
	}
}

func TestChat_UnknownUser(t *testing.T) {
	s, _, _ := newChatSvc(t, &stubCompanion{})
	_, err := s.Chat(context.Background(), ChatInput{UUID: "nobody", Message: "hi"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestChat_AssignmentCycle(t *testing.T) {
	comp := &stubCompanion{
		reply:    llm.Reply{Text: "ok", Points: 3},
		analysis: llm.Analysis{Emotion: domain.Sad, Animal: domain.Tiger},
	}
	s, _, store := newChatSvc(t, comp)

	for i := 1; i <= 3; i++ {
		res := say(t, s, "hello")
		if res.Threshold || res.Animal != "" {
			t.Fatalf("turn %d should be regular, got %+v", i, res)
		}
	}

	res := say(t, s, "fourth")
	if !res.Threshold || res.Animal != domain.Tiger || res.Emotion != domain.Sad {
		t.Fatalf("turn 4 should assign tiger/sad, got %+v", res)
	}
	if comp.analyzeCalls != 1 || len(comp.analyzed) != 7 {
		t.Fatalf("analysis should see 7 turns once, got calls=%d turns=%d", comp.analyzeCalls, len(comp.analyzed))
	}

	st, _ := store.Load(context.Background(), "U1")
	if st.Count != 4 || len(st.History) != 1 || st.History[0].Role != domain.RoleAssistant {
		t.Fatalf("history should reset to the assistant reply, got %+v", st)
	}

	// the detector now suggests another animal; the binding must hold
	comp.analysis = llm.Analysis{Emotion: domain.Happy, Animal: domain.Pig}
	for i := 5; i <= 7; i++ {
		if res := say(t, s, "again"); res.Threshold {
			t.Fatalf("turn %d should be regular", i)
		}
	}
	res = say(t, s, "eighth")
	if !res.Threshold || res.Animal != domain.Tiger || res.Emotion != domain.Happy {
		t.Fatalf("turn 8 should keep tiger and re-detect mood, got %+v", res)
	}

	u, _ := repo.GetUser(context.Background(), s.DB, "U1")
	if u.Animal() != domain.Tiger || u.Mood() != domain.Happy {
		t.Fatalf("stored animal/mood mismatch: %+v", u)
	}
	if u.Points != 8*3 {
		t.Fatalf("points should accumulate to 24, got %d", u.Points)
	}
	n, _ := repo.CountChats(context.Background(), s.DB, "U1")
	if n != 8 {
		t.Fatalf("chat log should hold 8 rows, got %d", n)
	}
}

func TestChat_RegularTurnPassesPriorHistory(t *testing.T) {
	comp := &stubCompanion{reply: llm.Reply{Text: "first reply", Points: 1}}
	s, _, _ := newChatSvc(t, comp)

	say(t, s, "one")
	if len(comp.lastHistory) != 0 || comp.lastMessage != "one" {
		t.Fatalf("first turn should have empty history, got %+v", comp.lastHistory)
	}
	say(t, s, "two")
	if len(comp.lastHistory) != 2 || comp.lastHistory[0].Content != "one" || comp.lastHistory[1].Content != "first reply" {
		t.Fatalf("second turn history mismatch: %+v", comp.lastHistory)
	}
}

func TestChat_SuppliedEmotion(t *testing.T) {
	comp := &stubCompanion{reply: llm.Reply{Text: "ok", Points: 2}}
	s, users, _ := newChatSvc(t, comp)

	res, err := s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi", Emotion: "furious"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Emotion != domain.Neutral || comp.lastMood != domain.Neutral {
		t.Fatalf("unknown emotion should coerce to neutral, got %q / %q", res.Emotion, comp.lastMood)
	}
	// no animal yet, so the mood is not stored
	if _, ok := users.last()["animal_emotion"]; ok {
		t.Fatalf("animal_emotion must not be set before an animal is bound")
	}

	_ = repo.UpdateUser(context.Background(), s.DB, "U1", map[string]any{"animal_type": "penguin", "animal_emotion": "calm"})
	res, _ = s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi", Emotion: "ANGRY"})
	if res.Emotion != domain.Angry || res.Animal != domain.Penguin {
		t.Fatalf("want angry/penguin, got %+v", res)
	}
	if got := users.last()["animal_emotion"]; got != "angry" {
		t.Fatalf("supplied emotion should be stored, got %v", got)
	}
}

func TestChat_RegularTurnUsesStoredMood(t *testing.T) {
	comp := &stubCompanion{reply: llm.Reply{Text: "ok"}}
	s, _, _ := newChatSvc(t, comp)
	_ = repo.UpdateUser(context.Background(), s.DB, "U1", map[string]any{"animal_type": "dog", "animal_emotion": "sad"})

	res := say(t, s, "hi")
	if res.Emotion != domain.Sad || comp.lastMood != domain.Sad || comp.lastAnimal != domain.Dog {
		t.Fatalf("stored mood/animal should drive the reply, got %+v", comp)
	}
	if res.Animal != "" {
		t.Fatalf("animal is only echoed when an emotion is supplied")
	}
}

func TestChat_ReplyFailureFallsBack(t *testing.T) {
	comp := &stubCompanion{replyErr: errors.New("provider down")}
	s, _, _ := newChatSvc(t, comp)

	res := say(t, s, "hi")
	if !strings.HasPrefix(res.Response, "I understand you're feeling neutral") {
		t.Fatalf("unexpected fallback: %q", res.Response)
	}
	if res.Points != llm.DefaultPoints {
		t.Fatalf("fallback should award default points, got %d", res.Points)
	}
}

func TestChat_AnalysisFailureUsesDefaults(t *testing.T) {
	comp := &stubCompanion{reply: llm.Reply{Text: "ok"}, analyzeErr: errors.New("bad json")}
	s, _, _ := newChatSvc(t, comp)
	s.Cycle = 1

	res := say(t, s, "hi")
	if !res.Threshold || res.Animal != domain.Dog || res.Emotion != domain.Neutral {
		t.Fatalf("want dog/neutral defaults, got %+v", res)
	}
}

func TestChat_ProviderTimeout(t *testing.T) {
	comp := &stubCompanion{replyErr: llm.ErrTimeout}
	s, _, store := newChatSvc(t, comp)

	_, err := s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi"})
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("want ErrUpstreamTimeout, got %v", err)
	}
	st, _ := store.Load(context.Background(), "U1")
	if st.Count != 0 {
		t.Fatalf("a timed-out turn must not advance the counter, got %d", st.Count)
	}

	comp.replyErr = nil
	comp.analyzeErr = llm.ErrTimeout
	s.Cycle = 1
	if _, err := s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi"}); !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("analysis timeout: want ErrUpstreamTimeout, got %v", err)
	}
}

func TestChat_StoreTimeout(t *testing.T) {
	s, _, _ := newChatSvc(t, &stubCompanion{})
	s.Users = slowUsers{}
	s.StoreTimeout = 20 * time.Millisecond

	_, err := s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi"})
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("want ErrUpstreamTimeout, got %v", err)
	}
}

func TestChat_ConcurrentTurnsAreSerialized(t *testing.T) {
	comp := &stubCompanion{reply: llm.Reply{Text: "ok", Points: 1}, analysis: llm.Analysis{Emotion: domain.Calm, Animal: domain.Hamster}}
	s, _, store := newChatSvc(t, comp)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Chat(context.Background(), ChatInput{UUID: "U1", Message: "hi"})
		}()
	}
	wg.Wait()

	st, _ := store.Load(context.Background(), "U1")
	if st.Count != 8 {
		t.Fatalf("lost updates: count=%d", st.Count)
	}
	if comp.analyzeCalls != 2 {
		t.Fatalf("expected exactly two assignment turns, got %d", comp.analyzeCalls)
	}
	u, _ := repo.GetUser(context.Background(), s.DB, "U1")
	if u.Points != 8 {
		t.Fatalf("points lost under concurrency: %d", u.Points)
	}
}

func TestFallbackReply(t *testing.T) {
	if got := fallbackReply(""); got != "I understand you're feeling neutral. How can I help you today?" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := fallbackReply(domain.Happy); !strings.Contains(got, "feeling happy") {
		t.Fatalf("unexpected: %q", got)
	}
}
