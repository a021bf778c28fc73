package api

import (
	"context"
	"errors"
	"net/http"

	"ForecastDesk/internal/domain/models"
	"ForecastDesk/internal/service/ratelimit"
	"ForecastDesk/internal/usecase"
	xhttp "ForecastDesk/pkg/http"
	xlogger "ForecastDesk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WorkflowEchoHandler exposes the forecast workflows over HTTP and WebSocket.
type WorkflowEchoHandler struct {
	logger   *xlogger.Logger
	registry *usecase.Registry
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader
}

// NewWorkflowEchoHandler builds the handler. A nil limiter disables submit rate limiting.
func NewWorkflowEchoHandler(logger *xlogger.Logger, registry *usecase.Registry, limiter *ratelimit.Limiter) *WorkflowEchoHandler {
	return &WorkflowEchoHandler{
		logger:   logger.Component("api"),
		registry: registry,
		limiter:  limiter,
		// Origins are enforced by the CORS middleware.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WorkflowEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/workflow")
	g.GET("", h.Get)
	g.POST("/activate", h.Activate)
	g.POST("/deactivate", h.Deactivate)
	g.POST("/forecasts", h.Submit)
	g.GET("/forecast", h.Page)
	g.DELETE("/messages/:source", h.Dismiss)

	e.GET("/ws/workflow", h.Stream)
}

type pageRequest struct {
	ID   string `query:"id" validate:"required"`
	Page int    `query:"page" default:"1" validate:"gte=1"`
}

// SubmitResult is the body of POST /api/workflow/forecasts.
type SubmitResult struct {
	Snapshot usecase.Snapshot `json:"snapshot"`
	Error    *xhttp.AppError  `json:"error,omitempty"`
}

func (h *WorkflowEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":    "ok",
		"workflows": len(h.registry.Identifiers()),
	})
}

func identifier(c echo.Context) (string, error) {
	id := c.QueryParam("id")
	if id == "" {
		return "", xhttp.NewAppError("ERR_REQUIRED", "id", "id is required", http.StatusBadRequest)
	}
	return id, nil
}

func (h *WorkflowEchoHandler) workflow(c echo.Context) (*usecase.Workflow, error) {
	id, err := identifier(c)
	if err != nil {
		return nil, err
	}
	return h.registry.Get(id), nil
}

// existing resolves a workflow without creating one, for calls that only
// make sense on a workflow the client already opened.
func (h *WorkflowEchoHandler) existing(c echo.Context) (*usecase.Workflow, error) {
	id, err := identifier(c)
	if err != nil {
		return nil, err
	}
	w, ok := h.registry.Lookup(id)
	if !ok {
		return nil, xhttp.NotFoundError("unknown workflow").WithParam("id", id)
	}
	return w, nil
}

func (h *WorkflowEchoHandler) Get(c echo.Context) error {
	w, err := h.workflow(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, w.Snapshot())
}

// Activate blocks until both fetches resolve. The fetches outlive a dropped
// client connection so the workflow still settles.
func (h *WorkflowEchoHandler) Activate(c echo.Context) error {
	w, err := h.workflow(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	snap := w.Activate(context.WithoutCancel(c.Request().Context()))
	return xhttp.SuccessResponse(c, snap)
}

func (h *WorkflowEchoHandler) Deactivate(c echo.Context) error {
	w, err := h.existing(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	w.Deactivate()
	return xhttp.SuccessResponse(c, w.Snapshot())
}

func (h *WorkflowEchoHandler) Submit(c echo.Context) error {
	w, err := h.workflow(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":submit") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many forecast requests. Please wait and try again."))
	}

	req := &models.SubmitForecastRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := w.Submit(context.WithoutCancel(c.Request().Context()), req.Model, req.HorizonDays)
	if err != nil {
		appErr := submitError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("forecast submission failed",
				xlogger.String("identifier", w.Identifier()),
				xlogger.Error(err),
			)
		}
		return xhttp.DataResponse(c, appErr.Status, SubmitResult{Snapshot: snap, Error: appErr})
	}
	return xhttp.DataResponse(c, http.StatusCreated, SubmitResult{Snapshot: snap})
}

func submitError(err error) *xhttp.AppError {
	msg := models.UserMessage(err)
	switch {
	case errors.Is(err, models.ErrSubmitInProgress):
		return xhttp.ConflictError(msg).WithError(err)
	case models.IsKind(err, models.KindValidation):
		return xhttp.BadRequestError(msg).WithError(err)
	default:
		return xhttp.BadGatewayError(msg).
			WithParam("kind", string(models.KindOf(err))).
			WithError(err)
	}
}

func (h *WorkflowEchoHandler) Page(c echo.Context) error {
	req := &pageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap := h.registry.Get(req.ID).SetPage(req.Page)
	return xhttp.SuccessResponse(c, snap.Page)
}

func (h *WorkflowEchoHandler) Dismiss(c echo.Context) error {
	w, err := h.existing(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	src, ok := usecase.ParseMessageSource(c.Param("source"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("unknown message source").
			WithParam("source", c.Param("source")))
	}
	return xhttp.SuccessResponse(c, w.Dismiss(src))
}
