package heart

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ValidateRequest is the JSON body for POST /validate.
type ValidateRequest struct {
	Action     string  `json:"action"`
	Intent     string  `json:"intent"`
	Complexity float64 `json:"complexity"`
}

// HTTPHandler exposes the gateway over HTTP.
type HTTPHandler struct {
	gateway Gateway
}

// NewHTTPHandler creates a handler around any gateway implementation.
func NewHTTPHandler(gateway Gateway) *HTTPHandler {
	return &HTTPHandler{gateway: gateway}
}

// RegisterRoutes registers the validator service surface:
//
//	POST /validate   -> {decision, torsion, vdr, i_nssi, reason}
//	GET  /health     -> {status}
//	GET  /invariants -> {torsion_max, vdr_min, complexity_threshold}
func (h *HTTPHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/validate", h.handleValidate)
	e.GET("/health", h.handleHealth)
	e.GET("/invariants", h.handleInvariants)
}

func (h *HTTPHandler) handleValidate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action is required")
	}

	verdict, err := h.gateway.Validate(c.Request().Context(), req.Action, req.Intent, req.Complexity)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, verdict)
}

func (h *HTTPHandler) handleHealth(c echo.Context) error {
	health, err := h.gateway.Health(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, health)
}

func (h *HTTPHandler) handleInvariants(c echo.Context) error {
	thresholds, err := h.gateway.Invariants(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, thresholds)
}
