// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geomap/internal/frame"
	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/service"
	"github.com/joeblew999/plat-geomap/internal/tiles"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "1.0.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Panels  *service.PanelService
	DB      *sql.DB
	DataDir string
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// APIHandler holds the REST handlers. Methods named Register* are
// discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// toHumaError maps service and domain errors to HTTP problems.
func toHumaError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrPanelNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrPanelExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, frame.ErrMissingColumn),
		errors.Is(err, frame.ErrColumnLength),
		errors.Is(err, mapview.ErrInvalidNumericOption),
		errors.Is(err, mapview.ErrInvalidOption):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, tiles.ErrTileOutOfRange):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.NewError(http.StatusInternalServerError, "internal error", err)
}
