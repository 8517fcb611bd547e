package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hryhorenko/commentsapp/internal/cache"
	"github.com/hryhorenko/commentsapp/internal/captcha"
	"github.com/hryhorenko/commentsapp/internal/config"
	"github.com/hryhorenko/commentsapp/internal/es"
	"github.com/hryhorenko/commentsapp/internal/events"
	"github.com/hryhorenko/commentsapp/internal/handlers"
	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/mailer"
	loggingmw "github.com/hryhorenko/commentsapp/internal/middleware/logging"
	"github.com/hryhorenko/commentsapp/internal/repo"
	"github.com/hryhorenko/commentsapp/internal/service/auth"
	"github.com/hryhorenko/commentsapp/internal/service/comment"
	"github.com/hryhorenko/commentsapp/internal/service/search"
	"github.com/hryhorenko/commentsapp/internal/storage"
	"github.com/hryhorenko/commentsapp/internal/tokens"
	httpserver "github.com/hryhorenko/commentsapp/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var codeStore cache.CodeStore
	var redisClient *cache.Redis
	if configuration.REDIS_ADDR != "" {
		redisClient, err = cache.NewRedis(configuration.REDIS_ADDR)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		codeStore = redisClient
	} else {
		logger.Warn("REDIS_ADDR not set, captcha codes kept in process memory")
		codeStore = cache.NewMemory()
	}

	var publisher events.Publisher
	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
		publisher = producer
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init error: %v", err)
	}
	searchSvc := &search.Service{ES: esClient, Index: "comments"}

	var sender mailer.Sender = mailer.Noop{}
	if configuration.SMTP_HOST != "" {
		sender = mailer.NewSMTP(
			configuration.SMTP_HOST,
			configuration.SMTP_PORT,
			configuration.SMTP_USER,
			configuration.SMTP_PASSWORD,
			configuration.SMTP_FROM,
		)
	}

	fileStore, err := storage.NewFileStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("file store init error: %v", err)
	}

	issuer := tokens.NewIssuer([]byte(configuration.JWT_SECRET))

	authSvc := &auth.Service{
		Users:       &repo.UserRepo{DB: db},
		Ledger:      &repo.RefreshTokenRepo{DB: db},
		Issuer:      issuer,
		Mailer:      sender,
		Events:      publisher,
		AdminEmails: configuration.ADMIN_EMAILS,
		BaseURL:     configuration.BASE_URL,
	}

	commentSvc := &comment.Service{
		Comments: &repo.CommentRepo{DB: db},
		Files:    fileStore,
		Events:   publisher,
		Search:   searchSvc,
	}

	captchaSvc := captcha.New(codeStore, rand.New(rand.NewSource(time.Now().UnixNano())))

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{Auth: authSvc},
		CommentHandler: &handlers.CommentHandler{Comments: commentSvc},
		CaptchaHandler: &handlers.CaptchaHandler{Captcha: captchaSvc},
		SearchHandler:  &handlers.SearchHandler{Search: searchSvc},
		Issuer:         issuer,
		UploadDir:      configuration.UPLOAD_DIR,
	})

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
