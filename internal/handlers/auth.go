package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/service/auth"
)

type AuthHandler struct {
	Auth *auth.Service
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		l.Warn("register failed", "status", 400, "reason", "invalid email format")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email format")
	}

	session, err := h.Auth.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, auth.ErrDuplicateUser):
			l.Warn("register failed", "status", 409, "reason", "user exists")
			return echo.NewHTTPError(http.StatusConflict, "user already exists")
		default:
			l.Error("register failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	c.SetCookie(refreshCookie(session.RefreshToken))
	l.Info("register success", "user_id", session.User.ID)
	return c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	session, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			l.Warn("login failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			l.Error("login failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	c.SetCookie(refreshCookie(session.RefreshToken))
	l.Info("login success", "user_id", session.User.ID)
	return c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req struct {
		RefreshToken string        `json:"refresh_token"`
		User         auth.UserView `json:"user"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	// The refresh token may also arrive via the cookie set on login.
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(refreshCookieName); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	session, err := h.Auth.Refresh(ctx, req.RefreshToken, req.User)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			l.Warn("refresh failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, auth.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		default:
			l.Error("refresh failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	c.SetCookie(refreshCookie(session.RefreshToken))
	return c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(refreshCookieName); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		c.SetCookie(deleteRefreshCookie())
		if errors.Is(err, auth.ErrInvalidToken) {
			l.Warn("logout failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		l.Error("logout failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(deleteRefreshCookie())
	l.Info("logout success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := strconv.ParseUint(c.QueryParam("userId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	token := c.QueryParam("token")

	if err := h.Auth.ConfirmEmail(ctx, uint(userID), token); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, auth.ErrInvalidToken):
			return echo.NewHTTPError(http.StatusBadRequest, "email confirmation error")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email confirmed"})
}
