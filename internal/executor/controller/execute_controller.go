package controller

import (
	"context"
	"errors"
	"net/http"

	"codeexec/internal/executor"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Executor is the engine surface used by the HTTP layer.
type Executor interface {
	Execute(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult
	Languages() []executor.LanguageInfo
	Health(ctx context.Context) executor.HealthReport
}

// ExecuteController handles execution requests.
type ExecuteController struct {
	engine Executor
}

// NewExecuteController creates a new controller.
func NewExecuteController(engine Executor) *ExecuteController {
	return &ExecuteController{engine: engine}
}

// Register mounts the routes on r.
func (h *ExecuteController) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/health", h.Health)

	v1 := api.Group("/v1")
	v1.POST("/execute", h.Execute)
	v1.GET("/languages", h.Languages)
}

// Execute runs one submission. Execution failures are part of the result, so
// only malformed requests are reported as HTTP errors.
func (h *ExecuteController) Execute(c *gin.Context) {
	var req executor.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErr.Wrapf(err, appErr.CodeTooLarge, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.BadRequest(c, "Invalid request body")
		return
	}
	result := h.engine.Execute(c.Request.Context(), req)
	response.Success(c, result)
}

// Languages lists supported languages.
func (h *ExecuteController) Languages(c *gin.Context) {
	response.Success(c, h.engine.Languages())
}

// Health reports engine readiness.
func (h *ExecuteController) Health(c *gin.Context) {
	report := h.engine.Health(c.Request.Context())
	if report.Status == executor.HealthUnhealthy {
		response.WithStatus(c, http.StatusServiceUnavailable, appErr.ServiceUnavailable, report)
		return
	}
	response.WithStatus(c, http.StatusOK, appErr.Success, report)
}
