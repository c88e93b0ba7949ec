// Diary HTTP handlers.
//
// This file exposes diary endpoints:
//   - POST /diary/generate         (body {uuid})
//   - POST /diary/generate/{uuid}
//   - GET  /diary/dates/{uuid}, GET /diary/dates?uuid=   (ETag support)
//   - GET  /diary/entry/{uuid}/{date}
//   - POST /diary/custom
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

//
// DTOs
//

// GenerateDiaryRequest selects the user whose day is summarized.
type GenerateDiaryRequest struct {
	UUID string `json:"uuid" example:"A1B2C3D4-0000-4000-8000-000000000001"`
}

// GenerateDiaryResponse carries the stored entry.
type GenerateDiaryResponse struct {
	Message string `json:"message" example:"Diary generated"`
	Date    string `json:"date" example:"2025-06-01"`
	Summary string `json:"summary" example:"Today I talked about work stress and felt lighter afterwards."`
	Emotion string `json:"emotion" example:"calm"`
}

// DiaryItem is one entry of the dates listing.
type DiaryItem struct {
	Date    string `json:"date" example:"2025-06-01"`
	Emotion string `json:"emotion" example:"happy"`
	Summary string `json:"summary"`
}

// CustomDiaryRequest stores a caller-written entry.
type CustomDiaryRequest struct {
	UUID    string `json:"uuid"`
	Date    string `json:"date" example:"2025-06-01"`
	Summary string `json:"summary"`
	Emotion string `json:"emotion" example:"joy"`
}

//
// Handlers
//

// GenerateDiary godoc
// @ID          generateDiary
// @Summary     Generate today's diary
// @Description Summarizes today's chat log into a diary entry, replacing any entry for the same day.
// @Tags        Diary
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GenerateDiaryRequest  true  "User"
// @Success     200  {object}  handlers.GenerateDiaryResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /diary/generate [post]
func (h *Handlers) GenerateDiary(c *gin.Context) {
	var req GenerateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.generateDiary(c, req.UUID)
}

// GenerateDiaryByPath godoc
// @ID          generateDiaryByPath
// @Summary     Generate today's diary (path form)
// @Tags        Diary
// @Produce     json
// @Param       uuid  path  string  true  "User key"
// @Success     200  {object}  handlers.GenerateDiaryResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /diary/generate/{uuid} [post]
func (h *Handlers) GenerateDiaryByPath(c *gin.Context) {
	h.generateDiary(c, c.Param("uuid"))
}

func (h *Handlers) generateDiary(c *gin.Context, uuid string) {
	entry, err := h.diarySvc.Generate(c.Request.Context(), uuid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, GenerateDiaryResponse{
		Message: "Diary generated",
		Date:    entry.Date,
		Summary: entry.Summary,
		Emotion: entry.Emotion,
	})
}

// ListDiaryDates godoc
// @ID          listDiaryDates
// @Summary     List diary entries
// @Description Returns the user's entries, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Diary
// @Produce     json
// @Param       uuid           path    string  true   "User key"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   handlers.DiaryItem
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /diary/dates/{uuid} [get]
func (h *Handlers) ListDiaryDates(c *gin.Context) {
	h.listDiaries(c, c.Param("uuid"))
}

// ListDiaryDatesByQuery godoc
// @ID          listDiaryDatesByQuery
// @Summary     List diary entries (query form)
// @Tags        Diary
// @Produce     json
// @Param       uuid  query  string  true  "User key"
// @Success     200  {array}   handlers.DiaryItem
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /diary/dates [get]
func (h *Handlers) ListDiaryDatesByQuery(c *gin.Context) {
	uuid := strings.TrimSpace(c.Query("uuid"))
	if uuid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uuid is required: use /diary/dates/{uuid} or /diary/dates?uuid={uuid}")
		return
	}
	h.listDiaries(c, uuid)
}

func (h *Handlers) listDiaries(c *gin.Context, uuid string) {
	ctx := c.Request.Context()
	key := domain.NormalizeUUID(uuid)

	// ETag pre-check (best effort). An empty listing never short-circuits so
	// unknown users still get their 404. Same-day rewrites keep the count, so
	// the tag carries the newest write at full clock precision.
	if count, last, err := h.diarySvc.Stats(ctx, key); err == nil && count > 0 {
		var ts int64
		if last != nil {
			ts = last.UnixNano()
		}
		etag := fmt.Sprintf(`W/"diaries:%s:%d:%d"`, key, count, ts)
		c.Header("ETag", etag)
		c.Header("Cache-Control", "private, no-cache")
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	entries, err := h.diarySvc.List(ctx, key)
	if err != nil {
		failErr(c, err)
		return
	}
	items := make([]DiaryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, DiaryItem{Date: e.Date, Emotion: e.Emotion, Summary: e.Summary})
	}
	ok(c, http.StatusOK, items)
}

// GetDiaryEntry godoc
// @ID          getDiaryEntry
// @Summary     Get one day's diary entry
// @Tags        Diary
// @Produce     json
// @Param       uuid  path  string  true  "User key"
// @Param       date  path  string  true  "Day (YYYY-MM-DD)"
// @Success     200  {object}  handlers.DiaryItem
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /diary/entry/{uuid}/{date} [get]
func (h *Handlers) GetDiaryEntry(c *gin.Context) {
	e, err := h.diarySvc.Get(c.Request.Context(), c.Param("uuid"), c.Param("date"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DiaryItem{Date: e.Date, Emotion: e.Emotion, Summary: e.Summary})
}

// CustomDiary godoc
// @ID          customDiary
// @Summary     Store a custom diary entry
// @Description Writes an entry for any date. The emotion is normalized onto the diary emotion set.
// @Tags        Diary
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CustomDiaryRequest  true  "Entry"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /diary/custom [post]
func (h *Handlers) CustomDiary(c *gin.Context) {
	var req CustomDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	_, err := h.diarySvc.Custom(c.Request.Context(), services.CustomInput{
		UUID:    req.UUID,
		Date:    req.Date,
		Summary: req.Summary,
		Emotion: req.Emotion,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Diary entry created"})
}
