package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/service/search"
	"github.com/hryhorenko/commentsapp/internal/util"
)

type SearchHandler struct {
	Search *search.Service
}

func (h *SearchHandler) Handler(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	ctx := c.Request().Context()
	total, docs, err := h.Search.Search(ctx, q, from, size)
	if err != nil {
		logging.FromContext(ctx).Error("search failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "comments": docs})
}
