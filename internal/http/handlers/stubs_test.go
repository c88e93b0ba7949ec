package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubUserSvc struct {
	onboard  func(context.Context, string, string) (*domain.User, bool, error)
	get      func(context.Context, string) (*domain.User, error)
	del      func(context.Context, string) error
	assign   func(context.Context, string, string) (*services.CharacterResult, error)
	emotion  func(context.Context, string, string) (domain.Emotion, error)
	points   func(context.Context, string, int) error
	level    func(context.Context, string, int) error
	nickname func(context.Context, string, string) error
}

func (s stubUserSvc) Onboard(ctx context.Context, u, n string) (*domain.User, bool, error) {
	if s.onboard != nil {
		return s.onboard(ctx, u, n)
	}
	return &domain.User{UUID: u, Nickname: n, AnimalLevel: 1}, true, nil
}

func (s stubUserSvc) Get(ctx context.Context, u string) (*domain.User, error) {
	if s.get != nil {
		return s.get(ctx, u)
	}
	return &domain.User{UUID: u, Nickname: "n", AnimalLevel: 1}, nil
}

func (s stubUserSvc) Delete(ctx context.Context, u string) error {
	if s.del != nil {
		return s.del(ctx, u)
	}
	return nil
}

func (s stubUserSvc) AssignCharacter(ctx context.Context, u, e string) (*services.CharacterResult, error) {
	if s.assign != nil {
		return s.assign(ctx, u, e)
	}
	return &services.CharacterResult{}, nil
}

func (s stubUserSvc) UpdateEmotion(ctx context.Context, u, e string) (domain.Emotion, error) {
	if s.emotion != nil {
		return s.emotion(ctx, u, e)
	}
	return domain.Emotion(e), nil
}

func (s stubUserSvc) UpdatePoints(ctx context.Context, u string, p int) error {
	if s.points != nil {
		return s.points(ctx, u, p)
	}
	return nil
}

func (s stubUserSvc) UpdateLevel(ctx context.Context, u string, l int) error {
	if s.level != nil {
		return s.level(ctx, u, l)
	}
	return nil
}

func (s stubUserSvc) UpdateName(ctx context.Context, u, n string) error {
	if s.nickname != nil {
		return s.nickname(ctx, u, n)
	}
	return nil
}

type stubChatSvc struct {
	chat func(context.Context, services.ChatInput) (*services.ChatResult, error)
}

func (s stubChatSvc) Chat(ctx context.Context, in services.ChatInput) (*services.ChatResult, error) {
	if s.chat != nil {
		return s.chat(ctx, in)
	}
	return &services.ChatResult{Response: "hi", Points: 2}, nil
}

type stubDiarySvc struct {
	generate func(context.Context, string) (*domain.DiaryEntry, error)
	list     func(context.Context, string) ([]domain.DiaryEntry, error)
	get      func(context.Context, string, string) (*domain.DiaryEntry, error)
	stats    func(context.Context, string) (int64, *time.Time, error)
	custom   func(context.Context, services.CustomInput) (*domain.DiaryEntry, error)
}

func (s stubDiarySvc) Generate(ctx context.Context, u string) (*domain.DiaryEntry, error) {
	if s.generate != nil {
		return s.generate(ctx, u)
	}
	return &domain.DiaryEntry{UUID: u, Date: "2025-01-01", Summary: "s", Emotion: "neutral"}, nil
}

func (s stubDiarySvc) List(ctx context.Context, u string) ([]domain.DiaryEntry, error) {
	if s.list != nil {
		return s.list(ctx, u)
	}
	return nil, nil
}

func (s stubDiarySvc) Get(ctx context.Context, u, date string) (*domain.DiaryEntry, error) {
	if s.get != nil {
		return s.get(ctx, u, date)
	}
	return nil, services.ErrDiaryNotFound
}

func (s stubDiarySvc) Stats(ctx context.Context, u string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, u)
	}
	return 0, nil, nil
}

func (s stubDiarySvc) Custom(ctx context.Context, in services.CustomInput) (*domain.DiaryEntry, error) {
	if s.custom != nil {
		return s.custom(ctx, in)
	}
	return &domain.DiaryEntry{UUID: in.UUID, Date: in.Date}, nil
}

// ---------- router + request helpers ----------

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/onboarding", h.Onboard)
	r.GET("/user", h.GetUserByQuery)
	r.GET("/user/:uuid", h.GetUser)
	r.DELETE("/user/:uuid", h.DeleteUser)
	r.POST("/character", h.SelectCharacter)
	r.PATCH("/emotion", h.UpdateEmotion)
	r.GET("/user/update/points", h.UpdatePointsQuery)
	r.POST("/user/update/points", h.UpdatePoints)
	r.GET("/user/update/level", h.UpdateLevelQuery)
	r.POST("/user/update/level", h.UpdateLevel)
	r.GET("/user/update/name", h.UpdateNameQuery)
	r.POST("/user/update/name", h.UpdateName)
	r.POST("/chat", h.PostChat)
	r.POST("/diary/generate", h.GenerateDiary)
	r.POST("/diary/generate/:uuid", h.GenerateDiaryByPath)
	r.GET("/diary/dates", h.ListDiaryDatesByQuery)
	r.GET("/diary/dates/:uuid", h.ListDiaryDates)
	r.GET("/diary/entry/:uuid/:date", h.GetDiaryEntry)
	r.POST("/diary/custom", h.CustomDiary)
	return r
}

func do(t *testing.T, r http.Handler, method, url string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func strp(s string) *string { return &s }
