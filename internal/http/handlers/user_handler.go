// User HTTP handlers.
//
// This file exposes onboarding and profile endpoints:
//   - POST   /onboarding
//   - GET    /user/{uuid}, GET /user?uuid=
//   - DELETE /user/{uuid}
//   - POST   /character?emotion=&user_uuid=
//   - PATCH  /emotion?emotion=&user_uuid=
//   - GET|POST /user/update/points, /user/update/level, /user/update/name
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/utils"
)

//
// DTOs
//

// OnboardingRequest registers a device key with a nickname.
type OnboardingRequest struct {
	UUID     string `json:"uuid" example:"A1B2C3D4-0000-4000-8000-000000000001"`
	Nickname string `json:"nickname" example:"Momo"`
}

// OnboardingCreatedResponse is returned when onboarding created the user.
type OnboardingCreatedResponse struct {
	UUID     string `json:"uuid" example:"A1B2C3D4-0000-4000-8000-000000000001"`
	Nickname string `json:"nickname" example:"Momo"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	UUID          string    `json:"uuid" example:"A1B2C3D4-0000-4000-8000-000000000001"`
	Nickname      string    `json:"nickname" example:"Momo"`
	AnimalType    *string   `json:"animal_type" example:"tiger"`
	AnimalEmotion *string   `json:"animal_emotion" example:"happy"`
	AnimalLevel   int       `json:"animal_level" example:"1"`
	Points        int       `json:"points" example:"12"`
	IsNotified    bool      `json:"is_notified" example:"false"`
	CreatedAt     time.Time `json:"created_at"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		UUID:          u.UUID,
		Nickname:      u.Nickname,
		AnimalType:    u.AnimalType,
		AnimalEmotion: u.AnimalEmotion,
		AnimalLevel:   u.AnimalLevel,
		Points:        u.Points,
		IsNotified:    u.IsNotified,
		CreatedAt:     u.CreatedAt,
	}
}

// CharacterAssignedResponse is returned when a character was just bound.
type CharacterAssignedResponse struct {
	AnimalType    string `json:"animal_type" example:"hamster"`
	AnimalEmotion string `json:"animal_emotion" example:"anxious"`
	AnimalLevel   int    `json:"animal_level" example:"1"`
	Points        int    `json:"points" example:"0"`
}

// MoodResponse acknowledges a mood change.
type MoodResponse struct {
	Success bool   `json:"success" example:"true"`
	NewMood string `json:"new_mood" example:"calm"`
}

// UpdatePointsRequest sets the absolute point total.
type UpdatePointsRequest struct {
	UUID   string `json:"uuid"`
	Points *int   `json:"points" example:"20"`
}

// UpdateLevelRequest sets the animal level.
type UpdateLevelRequest struct {
	UUID        string `json:"uuid"`
	AnimalLevel *int   `json:"animal_level" example:"2"`
}

// UpdateNameRequest renames the user.
type UpdateNameRequest struct {
	UUID     string `json:"uuid"`
	Nickname string `json:"nickname" example:"Mochi"`
}

//
// Helpers
//

// queryInt parses an integer query parameter; ok is false when it is absent
// or malformed.
func queryInt(c *gin.Context, name string) (int, bool) {
	return utils.ParseInt(c.Query(name))
}

// userKeyQuery reads the user key from user_uuid, falling back to uuid.
func userKeyQuery(c *gin.Context) string {
	if v := strings.TrimSpace(c.Query("user_uuid")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("uuid"))
}

//
// Handlers
//

// Onboard godoc
// @ID          onboard
// @Summary     Onboard a user
// @Description Creates the user on first call. Later calls return the stored profile unchanged.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OnboardingRequest  true  "Onboarding payload"
// @Success     200  {object}  handlers.UserResponse  "Existing user, or {uuid, nickname} when created"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /onboarding [post]
func (h *Handlers) Onboard(c *gin.Context) {
	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, created, err := h.userSvc.Onboard(c.Request.Context(), req.UUID, req.Nickname)
	if err != nil {
		failErr(c, err)
		return
	}
	if created {
		ok(c, http.StatusOK, OnboardingCreatedResponse{UUID: u.UUID, Nickname: u.Nickname})
		return
	}
	ok(c, http.StatusOK, userResponse(u))
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Produce     json
// @Param       uuid  path  string  true  "User key"
// @Success     200  {object}  handlers.UserResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /user/{uuid} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	h.getUser(c, c.Param("uuid"))
}

// GetUserByQuery godoc
// @ID          getUserByQuery
// @Summary     Get a user (query form)
// @Tags        Users
// @Produce     json
// @Param       uuid  query  string  true  "User key"
// @Success     200  {object}  handlers.UserResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /user [get]
func (h *Handlers) GetUserByQuery(c *gin.Context) {
	uuid := strings.TrimSpace(c.Query("uuid"))
	if uuid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uuid is required: use /user/{uuid} or /user?uuid={uuid}")
		return
	}
	h.getUser(c, uuid)
}

func (h *Handlers) getUser(c *gin.Context, uuid string) {
	u, err := h.userSvc.Get(c.Request.Context(), uuid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, userResponse(u))
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user
// @Description Removes the user with its chats, diaries and conversation state.
// @Tags        Users
// @Produce     json
// @Param       uuid  path  string  true  "User key"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /user/{uuid} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.userSvc.Delete(c.Request.Context(), c.Param("uuid")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// SelectCharacter godoc
// @ID          selectCharacter
// @Summary     Select a character
// @Description Binds a random animal when none is assigned; otherwise only the mood changes.
// @Tags        Users
// @Produce     json
// @Param       emotion    query  string  true  "Mood"  Enums(happy, sad, angry, anxious, neutral)
// @Param       user_uuid  query  string  true  "User key"
// @Success     200  {object}  handlers.CharacterAssignedResponse  "Newly bound, or {success, new_mood} when already bound"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /character [post]
func (h *Handlers) SelectCharacter(c *gin.Context) {
	res, err := h.userSvc.AssignCharacter(c.Request.Context(), userKeyQuery(c), c.Query("emotion"))
	if err != nil {
		failErr(c, err)
		return
	}
	if !res.Assigned {
		ok(c, http.StatusOK, MoodResponse{Success: true, NewMood: string(res.Emotion)})
		return
	}
	ok(c, http.StatusOK, CharacterAssignedResponse{
		AnimalType:    string(res.Animal),
		AnimalEmotion: string(res.Emotion),
		AnimalLevel:   res.Level,
		Points:        res.Points,
	})
}

// UpdateEmotion godoc
// @ID          updateEmotion
// @Summary     Update the pet mood
// @Tags        Users
// @Produce     json
// @Param       emotion    query  string  true  "Mood"  Enums(happy, sad, angry, anxious, neutral)
// @Param       user_uuid  query  string  true  "User key"
// @Success     200  {object}  handlers.MoodResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /emotion [patch]
func (h *Handlers) UpdateEmotion(c *gin.Context) {
	mood, err := h.userSvc.UpdateEmotion(c.Request.Context(), userKeyQuery(c), c.Query("emotion"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MoodResponse{Success: true, NewMood: string(mood)})
}

// UpdatePointsQuery godoc
// @ID          updatePointsQuery
// @Summary     Set points (query form)
// @Tags        Users
// @Param       uuid    query  string  true  "User key"
// @Param       points  query  int     true  "Point total"  minimum(0)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/points [get]
func (h *Handlers) UpdatePointsQuery(c *gin.Context) {
	points, valid := queryInt(c, "points")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "points must be an integer")
		return
	}
	if err := h.userSvc.UpdatePoints(c.Request.Context(), c.Query("uuid"), points); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// UpdatePoints godoc
// @ID          updatePoints
// @Summary     Set points
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UpdatePointsRequest  true  "Points payload"
// @Success     200  {object}  object
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/points [post]
func (h *Handlers) UpdatePoints(c *gin.Context) {
	var req UpdatePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Points == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uuid and points are required")
		return
	}
	if err := h.userSvc.UpdatePoints(c.Request.Context(), req.UUID, *req.Points); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// UpdateLevelQuery godoc
// @ID          updateLevelQuery
// @Summary     Set the animal level (query form)
// @Tags        Users
// @Produce     json
// @Param       uuid   query  string  true  "User key"
// @Param       level  query  int     true  "Level"  minimum(1)
// @Success     200  {object}  object
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/level [get]
func (h *Handlers) UpdateLevelQuery(c *gin.Context) {
	level, valid := queryInt(c, "level")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "level must be an integer")
		return
	}
	if err := h.userSvc.UpdateLevel(c.Request.Context(), c.Query("uuid"), level); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// UpdateLevel godoc
// @ID          updateLevel
// @Summary     Set the animal level
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UpdateLevelRequest  true  "Level payload"
// @Success     200  {object}  object
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/level [post]
func (h *Handlers) UpdateLevel(c *gin.Context) {
	var req UpdateLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AnimalLevel == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uuid and animal_level are required")
		return
	}
	if err := h.userSvc.UpdateLevel(c.Request.Context(), req.UUID, *req.AnimalLevel); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// UpdateNameQuery godoc
// @ID          updateNameQuery
// @Summary     Rename a user (query form)
// @Tags        Users
// @Produce     json
// @Param       uuid      query  string  true  "User key"
// @Param       nickname  query  string  true  "New nickname"
// @Success     200  {object}  object
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/name [get]
func (h *Handlers) UpdateNameQuery(c *gin.Context) {
	if err := h.userSvc.UpdateName(c.Request.Context(), c.Query("uuid"), c.Query("nickname")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// UpdateName godoc
// @ID          updateName
// @Summary     Rename a user
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UpdateNameRequest  true  "Name payload"
// @Success     200  {object}  object
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/update/name [post]
func (h *Handlers) UpdateName(c *gin.Context) {
	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.userSvc.UpdateName(c.Request.Context(), req.UUID, req.Nickname); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}
