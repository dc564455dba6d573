package controller

import (
	"errors"
	"strconv"

	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TryoutController struct {
	Service *service.TryoutService
}

func NewTryoutController(svc *service.TryoutService) *TryoutController {
	return &TryoutController{Service: svc}
}

// @Summary List released tryouts with computed availability
// @Tags tryout
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/tryouts [get]
func (c *TryoutController) List(ctx *gin.Context) {
	views, err := c.Service.ListReleased()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// @Summary Get one tryout
// @Tags tryout
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "tryout id"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id} [get]
func (c *TryoutController) Get(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	view, err := c.Service.Get(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrTryoutNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Completed-attempt ranking of a tryout
// @Tags tryout
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "tryout id"
// @Param limit query int false "max rows"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id}/results [get]
func (c *TryoutController) Results(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	limit := 0
	if v := ctx.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	rows, err := c.Service.Results(uint(id), limit)
	if err != nil {
		if errors.Is(err, util.ErrTryoutNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary Full completed-attempt rows of a tryout (admin)
// @Tags tryout
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "tryout id"
// @Param limit query int false "max rows"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id}/attempts [get]
func (c *TryoutController) Attempts(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	limit := 0
	if v := ctx.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	attempts, err := c.Service.CompletedAttempts(uint(id), limit)
	if err != nil {
		if errors.Is(err, util.ErrTryoutNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
