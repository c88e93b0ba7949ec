// Chat HTTP handlers.
//
// This file declares the service contracts consumed by every handler, the
// Handlers wiring, and the conversation endpoint:
//   - POST /chat   (one exchange with the companion)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// UserService defines onboarding and profile operations.
//
// Implementations must be safe for concurrent use and honor ctx.
type UserService interface {
	Onboard(ctx context.Context, uuid, nickname string) (*domain.User, bool, error)
	Get(ctx context.Context, uuid string) (*domain.User, error)
	Delete(ctx context.Context, uuid string) error
	AssignCharacter(ctx context.Context, uuid, emotion string) (*services.CharacterResult, error)
	UpdateEmotion(ctx context.Context, uuid, emotion string) (domain.Emotion, error)
	UpdatePoints(ctx context.Context, uuid string, points int) error
	UpdateLevel(ctx context.Context, uuid string, level int) error
	UpdateName(ctx context.Context, uuid, nickname string) error
}

// ChatService runs one conversation exchange.
type ChatService interface {
	Chat(ctx context.Context, in services.ChatInput) (*services.ChatResult, error)
}

// DiaryService defines diary generation and retrieval.
type DiaryService interface {
	Generate(ctx context.Context, uuid string) (*domain.DiaryEntry, error)
	List(ctx context.Context, uuid string) ([]domain.DiaryEntry, error)
	Get(ctx context.Context, uuid, date string) (*domain.DiaryEntry, error)
	// Stats returns the entry count and latest update for conditional GETs.
	Stats(ctx context.Context, uuid string) (int64, *time.Time, error)
	Custom(ctx context.Context, in services.CustomInput) (*domain.DiaryEntry, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for users, chat, and diaries.
type Handlers struct {
	userSvc  UserService
	chatSvc  ChatService
	diarySvc DiaryService
}

// New constructs a Handlers instance bound to the given services.
func New(userSvc UserService, chatSvc ChatService, diarySvc DiaryService) *Handlers {
	return &Handlers{userSvc: userSvc, chatSvc: chatSvc, diarySvc: diarySvc}
}

//
// DTOs
//

// ChatRequest is the JSON payload for one exchange.
type ChatRequest struct {
	Message string `json:"message" example:"I had a rough day at work"`
	UUID    string `json:"uuid" example:"A1B2C3D4-0000-4000-8000-000000000001"`
	// Emotion optionally overrides the mood for this turn; unknown values
	// are treated as neutral.
	Emotion string `json:"emotion,omitempty" example:"sad"`
}

// ChatResponse is the companion reply.
type ChatResponse struct {
	Response string  `json:"response" example:"That sounds exhausting. Want to tell me what happened?"`
	Emotion  *string `json:"emotion" example:"sad"`
	Animal   *string `json:"animal" example:"penguin"`
	// Points awarded for this exchange (0..5)
	Points int `json:"points" example:"3"`
	// IsFifth marks an assignment turn
	IsFifth bool `json:"isFifth" example:"false"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PostChat godoc
// @ID          postChat
// @Summary     Send a chat message
// @Description Runs one exchange of the companion conversation. Every fourth exchange is an assignment turn that settles the mood and binds an animal on first use.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing message or uuid"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     504  {object}  handlers.ErrorResponse  "Provider or store timed out"
// @Router      /chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.UUID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message and uuid are required")
		return
	}

	res, err := h.chatSvc.Chat(c.Request.Context(), services.ChatInput{
		UUID:    req.UUID,
		Message: req.Message,
		Emotion: req.Emotion,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ChatResponse{
		Response: res.Response,
		Emotion:  optional(string(res.Emotion)),
		Animal:   optional(string(res.Animal)),
		Points:   res.Points,
		IsFifth:  res.Threshold,
	})
}
