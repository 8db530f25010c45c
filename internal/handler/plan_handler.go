package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/request"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/response"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/service"
)

// PlanHandler exposes meal plan generation over HTTP.
type PlanHandler struct {
	plans *service.PlanService
}

func NewPlanHandler(plans *service.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// Generate handles POST /api/v1/meal-plans/generate.
func (h *PlanHandler) Generate(c *gin.Context) {
	var req request.GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(apperrors.ErrInvalidParam, "invalid request body: "+err.Error()))
		return
	}

	result, err := h.plans.GeneratePlan(c.Request.Context(), req.ToModel())
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Stats handles GET /api/v1/meal-plans/stats with pipeline diagnostics.
func (h *PlanHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(h.plans.PipelineStats()))
}
