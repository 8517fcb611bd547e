package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/hryhorenko/commentsapp/internal/handlers"
	authmw "github.com/hryhorenko/commentsapp/internal/middleware/auth"
	"github.com/hryhorenko/commentsapp/internal/tokens"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	CommentHandler *handlers.CommentHandler
	CaptchaHandler *handlers.CaptchaHandler
	SearchHandler  *handlers.SearchHandler
	Issuer         *tokens.Issuer
	UploadDir      string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Static("/uploads", d.UploadDir)

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.GET("/confirmemail", d.AuthHandler.ConfirmEmail)

	v1.GET("/captcha", d.CaptchaHandler.Generate)
	v1.POST("/captcha/validate", d.CaptchaHandler.Validate)

	v1.GET("/search", d.SearchHandler.Handler)

	comments := v1.Group("/comments")
	comments.GET("", d.CommentHandler.GetComments)

	protected := comments.Group("", authmw.RequireLogin(d.Issuer))
	protected.POST("", d.CommentHandler.CreateComment)
	protected.PUT("/:id", d.CommentHandler.UpdateComment)
	protected.DELETE("/:id", d.CommentHandler.DeleteComment)
}
