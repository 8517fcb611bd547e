// Package auth coordinates registration, login, refresh and logout by
// composing the credential store, the token issuer and the refresh-token
// ledger.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hryhorenko/commentsapp/internal/events"
	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/mailer"
	"github.com/hryhorenko/commentsapp/internal/models"
	"github.com/hryhorenko/commentsapp/internal/repo"
	"github.com/hryhorenko/commentsapp/internal/tokens"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDuplicateUser      = errors.New("user already exists")
)

const userEventsTopic = "user_events"

type Service struct {
	Users  *repo.UserRepo
	Ledger *repo.RefreshTokenRepo
	Issuer *tokens.Issuer
	Mailer mailer.Sender
	Events events.Publisher

	// AdminEmails lists operator identities granted the admin role on
	// registration. Injected from configuration at startup.
	AdminEmails []string

	// BaseURL is the public origin used to build confirmation links.
	BaseURL string
}

type UserView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         UserView `json:"user"`
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     string
}

func userView(u *models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Username: u.Username, Name: u.Name}
}

func (s *Service) isAdminEmail(email string) bool {
	for _, a := range s.AdminEmails {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

// mintSession creates an access/refresh pair and persists the refresh
// value. Issuance and persistence are one logical step: if the ledger
// write fails no token is considered issued.
func (s *Service) mintSession(ctx context.Context, u *models.User) (*Session, error) {
	access, err := s.Issuer.IssueAccessToken(u.ID, u.Name)
	if err != nil {
		if errors.Is(err, tokens.ErrInvalidUser) {
			return nil, ErrValidation
		}
		return nil, err
	}

	refresh, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.Ledger.Save(ctx, u.ID, refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         userView(u),
	}, nil
}

func (s *Service) publish(ctx context.Context, event map[string]any) {
	if s.Events == nil {
		return
	}
	key := fmt.Sprint(event["user_id"])
	if err := s.Events.PublishEvent(ctx, userEventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "error", err)
	}
}

// Register persists the user, ensures the default roles, assigns admin
// only to configured operator emails, mints a token pair and triggers
// the confirmation email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if in.Email == "" || in.Username == "" || in.Password == "" || in.Name == "" {
		return nil, ErrValidation
	}

	user := &models.User{
		Email:    in.Email,
		Username: in.Username,
		Name:     in.Name,
	}

	if err := s.Users.CreateUser(ctx, user, in.Password); err != nil {
		if errors.Is(err, repo.ErrDuplicateUser) {
			l.Warn("register failed", "reason", "duplicate user")
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	for _, role := range []string{"user", "admin"} {
		if err := s.Users.EnsureRole(ctx, role); err != nil {
			return nil, fmt.Errorf("ensure role %q: %w", role, err)
		}
	}

	role := "user"
	if s.isAdminEmail(user.Email) {
		role = "admin"
	}
	if err := s.Users.AssignRole(ctx, user, role); err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	created, err := s.Users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}

	session, err := s.mintSession(ctx, created)
	if err != nil {
		return nil, err
	}

	s.sendConfirmation(ctx, created)
	s.publish(ctx, map[string]any{
		"type":     "user_registered",
		"user_id":  created.ID,
		"username": created.Username,
	})

	l.Info("register success", "user_id", created.ID)
	return session, nil
}

// Login replaces any previous refresh token for the user: one active
// session per user, last writer wins.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if email == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("login failed", "reason", "unknown email")
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !s.Users.CheckPassword(user, password) {
		l.Warn("login failed", "reason", "bad password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	session, err := s.mintSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login success", "user_id", user.ID)
	return session, nil
}

// Refresh exchanges a live refresh token for a brand-new pair. The
// presented value must exist in the ledger and its owning user must
// match the claimed identity; the old value is overwritten and stops
// being accepted.
func (s *Service) Refresh(ctx context.Context, refreshToken string, claimed UserView) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	record, err := s.Ledger.FindByValue(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if record == nil {
		l.Warn("refresh failed", "reason", "token not in ledger")
		return nil, ErrInvalidToken
	}

	user, err := s.Users.FindByID(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if record.UserID != user.ID {
		l.Warn("refresh failed", "reason", "token owner mismatch", "user_id", user.ID)
		return nil, ErrInvalidToken
	}

	session, err := s.mintSession(ctx, user)
	if err != nil {
		return nil, err
	}

	l.Info("refresh success", "user_id", user.ID)
	return session, nil
}

// Logout revokes the session by deleting the ledger row. Repeated logout
// fails with ErrInvalidToken rather than crashing.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrInvalidToken
	}

	record, err := s.Ledger.FindByValue(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if record == nil {
		return ErrInvalidToken
	}

	return s.Ledger.Remove(ctx, record)
}
