package diagnosis

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/diagnose/diagnose/internal/domain/rules"
	"github.com/diagnose/diagnose/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the API on api. reload guards the mutating reload
// endpoint.
func (h *Handler) RegisterRoutes(api *echo.Group, reload ...echo.MiddlewareFunc) {
	api.POST("/diagnoses", h.Diagnose)
	api.GET("/rules", h.ListRules)
	api.POST("/rules/reload", h.ReloadRules, reload...)
	api.GET("/symptoms", h.ListSymptoms)
}

// DiagnoseRequest is the body of POST /diagnoses.
type DiagnoseRequest struct {
	Symptoms []string `json:"symptoms"`
}

func (h *Handler) Diagnose(c echo.Context) error {
	var req DiagnoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Diagnose(c.Request().Context(), req.Symptoms)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListRules(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total := h.svc.Rules(pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pg.Page(items, total, c.Request().URL.Path))
}

func (h *Handler) ReloadRules(c echo.Context) error {
	snap, err := h.svc.Reload(c.Request().Context())
	if err != nil {
		return reloadError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rules":     len(snap.Rules),
		"version":   snap.Version,
		"source":    snap.Source,
		"loaded_at": snap.LoadedAt,
	})
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]Symptom{"symptoms": h.svc.Symptoms()})
}

func reloadError(err error) error {
	var nf *rules.NotFoundError
	if errors.As(err, &nf) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	var fe *rules.FormatError
	if errors.As(err, &fe) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
