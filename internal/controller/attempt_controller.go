package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"tryout_backend/internal/engine"
	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Attempts *service.AttemptService
	Review   *service.ReviewService
}

func NewAttemptController(attempts *service.AttemptService, review *service.ReviewService) *AttemptController {
	return &AttemptController{Attempts: attempts, Review: review}
}

type startAttemptRequest struct {
	Password string `json:"password"`
}

type answerRequest struct {
	QuestionID uint            `json:"questionId" binding:"required"`
	Value      json.RawMessage `json:"value" binding:"required"`
	IsToggle   bool            `json:"isToggle"`
}

type flagRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
}

type navigateRequest struct {
	Index *int `json:"index" binding:"required"`
}

type visibilityRequest struct {
	State engine.VisibilityState `json:"state" binding:"required,oneof=hidden visible"`
}

func attemptID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		util.BadRequest(ctx, "invalid attempt id")
		return 0, false
	}
	return uint(id), true
}

// mapAttemptError translates lifecycle errors onto the response envelope.
func mapAttemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAttemptNotFound), errors.Is(err, util.ErrTryoutNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrClosedAttempt):
		util.Conflict(ctx, util.ErrClosedAttempt.Error())
	case errors.Is(err, util.ErrAttemptNotFinished):
		util.Conflict(ctx, util.ErrAttemptNotFinished.Error())
	case errors.Is(err, util.ErrMalformedAnswer),
		errors.Is(err, util.ErrSectionMismatch),
		errors.Is(err, util.ErrEmptyTryout):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrTryoutNotAvailable), errors.Is(err, util.ErrWrongPassword):
		util.Error(ctx, 403, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary Start or resume an attempt on a tryout
// @Tags attempt
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "tryout id"
// @Param body body startAttemptRequest false "access password when required"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	tryoutID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || tryoutID <= 0 {
		util.BadRequest(ctx, "invalid tryout id")
		return
	}

	var req startAttemptRequest
	_ = ctx.ShouldBindJSON(&req) // body optional

	view, err := c.Attempts.Start(user.UserID, uint(tryoutID), req.Password)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Live session state of an attempt
// @Tags attempt
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/session [get]
func (c *AttemptController) Session(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	state, section, err := c.Attempts.State(user.UserID, id)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"session": state,
		"section": section,
	})
}

// @Summary Record an answer value
// @Tags attempt
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Param body body answerRequest true "answer"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answer [post]
func (c *AttemptController) Answer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	var req answerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Attempts.Answer(user.UserID, id, req.QuestionID, req.Value, req.IsToggle); err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary Toggle the review flag on a question
// @Tags attempt
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Param body body flagRequest true "question"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/flag [post]
func (c *AttemptController) Flag(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	var req flagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	flagged, err := c.Attempts.ToggleFlag(user.UserID, id, req.QuestionID)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"flagged": flagged})
}

// @Summary Move the current question pointer
// @Tags attempt
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Param body body navigateRequest true "target index"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/navigate [post]
func (c *AttemptController) Navigate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	var req navigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	moved, err := c.Attempts.Navigate(user.UserID, id, *req.Index)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"moved": moved})
}

// @Summary Report a page-visibility transition
// @Tags attempt
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Param body body visibilityRequest true "visibility state"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/visibility [post]
func (c *AttemptController) Visibility(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	var req visibilityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	warned, err := c.Attempts.Visibility(user.UserID, id, req.State)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"warned": warned})
}

// @Summary Finish the active section
// @Tags attempt
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/finish-section [post]
func (c *AttemptController) FinishSection(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	attempt, err := c.Attempts.FinishSection(user.UserID, id)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary Close the live session, keeping the attempt resumable
// @Tags attempt
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/leave [post]
func (c *AttemptController) Leave(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	if err := c.Attempts.LeaveSession(user.UserID, id); err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary Per-section results of a completed attempt
// @Tags attempt
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) Result(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	attempt, results, err := c.Attempts.Result(user.UserID, id)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt":        attempt,
		"sectionResults": results,
	})
}

// @Summary Question-by-question review of a completed attempt
// @Tags attempt
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/review [get]
func (c *AttemptController) ReviewAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := attemptID(ctx)
	if !ok {
		return
	}

	sections, err := c.Review.Review(user.UserID, id)
	if err != nil {
		mapAttemptError(ctx, err)
		return
	}
	util.Success(ctx, sections)
}
