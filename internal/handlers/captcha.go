package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hryhorenko/commentsapp/internal/captcha"
	"github.com/hryhorenko/commentsapp/internal/logging"
)

type CaptchaHandler struct {
	Captcha *captcha.Service
}

func (h *CaptchaHandler) Generate(c echo.Context) error {
	ctx := c.Request().Context()

	challenge, err := h.Captcha.Generate(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("captcha generate failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.Response().Header().Set("Captcha-Id", challenge.ID)
	c.Response().Header().Set("Access-Control-Expose-Headers", "Captcha-Id")
	return c.Blob(http.StatusOK, "image/png", challenge.Image)
}

func (h *CaptchaHandler) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CaptchaID string `json:"captcha_id"`
		UserInput string `json:"user_input"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	valid, err := h.Captcha.Validate(ctx, req.CaptchaID, req.UserInput)
	if err != nil {
		logging.FromContext(ctx).Error("captcha validate failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"is_valid": valid})
}
