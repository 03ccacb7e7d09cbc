package cdshooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Card indicators, in increasing urgency.
const (
	IndicatorInfo     = "info"
	IndicatorWarning  = "warning"
	IndicatorCritical = "critical"
)

// Service is one entry of the discovery document.
type Service struct {
	Hook        string            `json:"hook"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	ID          string            `json:"id"`
	Prefetch    map[string]string `json:"prefetch,omitempty"`
}

// Request is the body POSTed to invoke a service.
type Request struct {
	Hook         string                 `json:"hook"`
	HookInstance string                 `json:"hookInstance"`
	Context      map[string]interface{} `json:"context"`
	Prefetch     map[string]interface{} `json:"prefetch,omitempty"`
}

// StringList reads a context value that should be a list of strings. Non-string
// items are skipped. A missing key yields nil.
func (r Request) StringList(key string) ([]string, error) {
	v, ok := r.Context[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("context.%s must be a list", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type Card struct {
	UUID      string `json:"uuid,omitempty"`
	Summary   string `json:"summary"`
	Detail    string `json:"detail,omitempty"`
	Indicator string `json:"indicator"`
	Source    Source `json:"source"`
}

type Source struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

type Response struct {
	Cards []Card `json:"cards"`
}

// Feedback records what the user did with a card.
type Feedback struct {
	Card             string `json:"card"`
	Outcome          string `json:"outcome"`
	OutcomeTimestamp string `json:"outcomeTimestamp,omitempty"`
}

// ServiceHandler produces cards for a hook invocation.
type ServiceHandler func(ctx context.Context, req Request) (*Response, error)

// FeedbackHandler receives card feedback for a service.
type FeedbackHandler func(ctx context.Context, serviceID string, fb Feedback) error

// Handler serves the CDS Hooks discovery, invocation and feedback endpoints.
type Handler struct {
	mu       sync.RWMutex
	services map[string]Service
	handlers map[string]ServiceHandler
	feedback map[string]FeedbackHandler
	order    []string
}

func NewHandler() *Handler {
	return &Handler{
		services: make(map[string]Service),
		handlers: make(map[string]ServiceHandler),
		feedback: make(map[string]FeedbackHandler),
	}
}

// RegisterService adds or replaces a service. Discovery lists services in
// first-registration order.
func (h *Handler) RegisterService(svc Service, fn ServiceHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.services[svc.ID]; !exists {
		h.order = append(h.order, svc.ID)
	}
	h.services[svc.ID] = svc
	h.handlers[svc.ID] = fn
}

func (h *Handler) RegisterFeedbackHandler(serviceID string, fn FeedbackHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedback[serviceID] = fn
}

// RegisterRoutes mounts the endpoints under /cds-services. mw runs on every
// route, typically JWT verification of the calling client.
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := e.Group("/cds-services", mw...)
	g.GET("", h.Discovery)
	g.POST("/:id", h.Invoke)
	g.POST("/:id/feedback", h.Feedback)
}

// Discovery handles GET /cds-services.
func (h *Handler) Discovery(c echo.Context) error {
	h.mu.RLock()
	services := make([]Service, 0, len(h.order))
	for _, id := range h.order {
		services = append(services, h.services[id])
	}
	h.mu.RUnlock()
	return c.JSON(http.StatusOK, map[string][]Service{"services": services})
}

// Invoke handles POST /cds-services/:id.
func (h *Handler) Invoke(c echo.Context) error {
	id := c.Param("id")

	h.mu.RLock()
	svc, ok := h.services[id]
	fn := h.handlers[id]
	h.mu.RUnlock()
	if !ok {
		return c.JSON(http.StatusNotFound, notFoundOutcome(id))
	}

	var req Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorOutcome(fmt.Sprintf("invalid request body: %v", err)))
	}
	if req.Hook != svc.Hook {
		return c.JSON(http.StatusBadRequest, errorOutcome(
			fmt.Sprintf("hook mismatch: request hook %q does not match service hook %q", req.Hook, svc.Hook),
		))
	}
	if req.HookInstance == "" {
		return c.JSON(http.StatusBadRequest, errorOutcome("hookInstance is required"))
	}
	if fn == nil {
		return c.JSON(http.StatusInternalServerError, internalErrorOutcome("no handler registered for service"))
	}

	resp, err := fn(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, internalErrorOutcome(err.Error()))
	}
	if resp == nil {
		resp = &Response{}
	}
	if resp.Cards == nil {
		resp.Cards = []Card{}
	}
	return c.JSON(http.StatusOK, resp)
}

// Feedback handles POST /cds-services/:id/feedback. Services without a
// feedback handler accept and discard feedback.
func (h *Handler) Feedback(c echo.Context) error {
	id := c.Param("id")

	h.mu.RLock()
	_, ok := h.services[id]
	fn := h.feedback[id]
	h.mu.RUnlock()
	if !ok {
		return c.JSON(http.StatusNotFound, notFoundOutcome(id))
	}

	var fb Feedback
	if err := json.NewDecoder(c.Request().Body).Decode(&fb); err != nil {
		return c.JSON(http.StatusBadRequest, errorOutcome(fmt.Sprintf("invalid feedback body: %v", err)))
	}
	if fn != nil {
		if err := fn(c.Request().Context(), id, fb); err != nil {
			return c.JSON(http.StatusInternalServerError, internalErrorOutcome(err.Error()))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
