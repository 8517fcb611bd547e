package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/service/comment"
	"github.com/hryhorenko/commentsapp/internal/util"
)

type CommentHandler struct {
	Comments *comment.Service
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *CommentHandler) GetComments(c echo.Context) error {
	ctx := c.Request().Context()

	opts := comment.ListOptions{
		PageSize:   parseIntDefault(c.QueryParam("pageSize"), util.DefaultPageSize),
		PageNumber: parseIntDefault(c.QueryParam("pageNumber"), 1),
		SortBy:     c.QueryParam("sortBy"),
		Descending: c.QueryParam("descending") == "true",
	}

	views, err := h.Comments.List(ctx, opts)
	if err != nil {
		logging.FromContext(ctx).Error("list comments failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, views)
}

func (h *CommentHandler) CreateComment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comment_create")

	userID, ok := c.Get("userID").(uint)
	if !ok || userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "user is not authenticated")
	}

	in := comment.CreateInput{Text: c.FormValue("text")}

	if raw := c.FormValue("parent_id"); raw != "" {
		parentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid parent_id")
		}
		pid := uint(parentID)
		in.ParentID = &pid
	}

	if fh, err := c.FormFile("file"); err == nil {
		src, err := fh.Open()
		if err != nil {
			l.Error("attachment open failed", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
		}
		defer src.Close()
		in.File = &comment.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Reader:      src,
		}
	}

	view, err := h.Comments.Create(ctx, userID, in)
	if err != nil {
		switch {
		case errors.Is(err, comment.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, comment.ErrParentNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, "parent comment not found")
		default:
			l.Error("create failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("comment created", "comment_id", view.ID, "user_id", userID)
	return c.JSON(http.StatusCreated, view)
}

func (h *CommentHandler) UpdateComment(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	view, err := h.Comments.Update(ctx, uint(id), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, comment.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, comment.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "comment not found")
		default:
			logging.FromContext(ctx).Error("update failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, view)
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Comments.Delete(ctx, uint(id)); err != nil {
		if errors.Is(err, comment.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "comment not found")
		}
		logging.FromContext(ctx).Error("delete failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.NoContent(http.StatusNoContent)
}
