package valueset

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler provides REST endpoints for value set resolution and sync.
type Handler struct {
	svc *Service
}

// NewHandler creates a new value set handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers value set routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	vsGroup := api.Group("/valuesets")
	vsGroup.GET("/resolve", h.Resolve)
	vsGroup.POST("/sync", h.Sync)
}

// Resolve handles GET /api/v1/valuesets/resolve?url=...
// It returns the value set definition from the loaded packages.
func (h *Handler) Resolve(c echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'url' is required")
	}

	vs, err := h.svc.Resolver().ValueSetFromURL(url)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		var mismatch *NotValueSetError
		if errors.As(err, &mismatch) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, vs)
}

// SyncRequest is the body of POST /api/v1/valuesets/sync.
type SyncRequest struct {
	URLs []string `json:"urls"`
}

// Sync handles POST /api/v1/valuesets/sync. It expands every requested
// value set and inserts the codes not yet present in the codes table.
func (h *Handler) Sync(c echo.Context) error {
	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.URLs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one value set url is required")
	}

	run := h.svc.SyncURLs(c.Request().Context(), req.URLs)
	return c.JSON(http.StatusOK, run)
}
