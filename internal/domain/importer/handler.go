package importer

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
)

type Handler struct {
	svc     *Service
	general metadata.Identifier
}

// NewHandler returns a handler identifying metadata by general unless the
// request overrides it.
func NewHandler(svc *Service, general metadata.Identifier) *Handler {
	return &Handler{svc: svc, general: general}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/tracker", h.Import)
}

// Import answers 200 with the report when every object passed validation and
// 409 with the report otherwise.
func (h *Handler) Import(c echo.Context) error {
	params, err := ParseParams(c.QueryParams(), h.general)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var b tracker.Bundle
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := h.svc.Import(c.Request().Context(), params, &b)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if report.Status == StatusError {
		return c.JSON(http.StatusConflict, report)
	}
	return c.JSON(http.StatusOK, report)
}
