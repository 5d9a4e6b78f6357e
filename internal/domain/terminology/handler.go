package terminology

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// Expander expands a value set URL to its complete code list.
type Expander interface {
	ExpandValueSet(ctx context.Context, valueSetURL string) (*fhir.ValueSet, error)
}

// Handler provides the FHIR ValueSet/$expand endpoint backed by the
// terminology client.
type Handler struct {
	expander Expander
}

// NewHandler creates a new terminology handler.
func NewHandler(expander Expander) *Handler {
	return &Handler{expander: expander}
}

// RegisterRoutes registers terminology routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/ValueSet/$expand", h.ExpandValueSet)
	fhirGroup.POST("/ValueSet/$expand", h.ExpandValueSet)
}

// ExpandValueSet handles GET|POST /fhir/ValueSet/$expand?url=...
func (h *Handler) ExpandValueSet(c echo.Context) error {
	vsURL := c.QueryParam("url")
	if vsURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'url' is required")
	}

	expanded, err := h.expander.ExpandValueSet(c.Request().Context(), vsURL)
	if err != nil {
		var unknown *UnknownDomainError
		if errors.As(err, &unknown) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		var status *StatusError
		if errors.As(err, &status) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, expanded)
}
