package auth

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hryhorenko/commentsapp/internal/models"
	"github.com/hryhorenko/commentsapp/internal/repo"
	"github.com/hryhorenko/commentsapp/internal/tokens"
)

type capturingMailer struct {
	to      []string
	subject string
	body    string
}

func (m *capturingMailer) Send(to, subject, body string) error {
	m.to = append(m.to, to)
	m.subject = subject
	m.body = body
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Role{}, &models.Comment{}, &models.RefreshToken{}))

	svc := &Service{
		Users:       &repo.UserRepo{DB: db},
		Ledger:      &repo.RefreshTokenRepo{DB: db},
		Issuer:      tokens.NewIssuer([]byte("test-jwt-secret")),
		AdminEmails: []string{"admin@example.com"},
		BaseURL:     "http://localhost:8080",
	}
	return svc, db
}

func registerInput() RegisterInput {
	return RegisterInput{
		Email:    "illia@example.com",
		Username: "illia",
		Password: "password123",
		Name:     "Illia",
	}
}

func TestRegister_MintsSessionAndSingleLedgerRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "illia", session.User.Username)

	claims, err := svc.Issuer.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Illia", claims.Name)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Login straight after registration must work with the same password.
	again, err := svc.Login(ctx, "illia@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, again.User.ID)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
	}{
		{name: "missing email", mutate: func(in *RegisterInput) { in.Email = "" }},
		{name: "missing username", mutate: func(in *RegisterInput) { in.Username = "" }},
		{name: "missing password", mutate: func(in *RegisterInput) { in.Password = "" }},
		{name: "missing name", mutate: func(in *RegisterInput) { in.Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput()
			tt.mutate(&in)
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_DuplicateUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Username = "other"
	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestRegister_AdminEmailGetsAdminRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminIn := RegisterInput{Email: "Admin@Example.COM", Username: "boss", Password: "password123", Name: "Boss"}
	session, err := svc.Register(ctx, adminIn)
	require.NoError(t, err)

	var admin models.User
	require.NoError(t, db.Preload("Roles").First(&admin, session.User.ID).Error)
	require.Len(t, admin.Roles, 1)
	assert.Equal(t, "admin", admin.Roles[0].Name)

	regular, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	var plain models.User
	require.NoError(t, db.Preload("Roles").First(&plain, regular.User.ID).Error)
	require.Len(t, plain.Roles, 1)
	assert.Equal(t, "user", plain.Roles[0].Name)
}

func TestRegister_SendsConfirmationEmail(t *testing.T) {
	svc, _ := newTestService(t)
	mail := &capturingMailer{}
	svc.Mailer = mail
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	require.Len(t, mail.to, 1)
	assert.Equal(t, "illia@example.com", mail.to[0])
	assert.Equal(t, "Email confirmation", mail.subject)
	assert.Contains(t, mail.body, "/api/v1/confirmemail?userId=")

	user, err := svc.Users.FindByID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Contains(t, mail.body, svc.ConfirmationToken(user))
}

func TestLogin_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "", "password123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Login(ctx, "illia@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_TwiceKeepsOneActiveSession(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	first, err := svc.Login(ctx, "illia@example.com", "password123")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "illia@example.com", "password123")
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Only the latest value survives: the earlier tokens are revoked.
	for _, stale := range []string{reg.RefreshToken, first.RefreshToken} {
		_, err = svc.Refresh(ctx, stale, reg.User)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}

	_, err = svc.Refresh(ctx, second.RefreshToken, reg.User)
	assert.NoError(t, err)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, session.RefreshToken, session.User)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	// The old value is overwritten and no longer accepted.
	_, err = svc.Refresh(ctx, session.RefreshToken, session.User)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, svc.Logout(ctx, session.RefreshToken), ErrInvalidToken)
}

func TestRefresh_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "", session.User)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, "never-issued", session.User)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, session.RefreshToken, UserView{ID: 9999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefresh_RejectsTokenOwnedByAnotherUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	bob, err := svc.Register(ctx, RegisterInput{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "password123",
		Name:     "Bob",
	})
	require.NoError(t, err)

	// Bob presents Alice's token while claiming his own identity.
	_, err = svc.Refresh(ctx, alice.RefreshToken, bob.User)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Alice's session is untouched.
	_, err = svc.Refresh(ctx, alice.RefreshToken, alice.User)
	assert.NoError(t, err)
}

func TestLogout_RevokesAndIsNotRepeatable(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.RefreshToken))

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.ErrorIs(t, svc.Logout(ctx, session.RefreshToken), ErrInvalidToken)
	assert.ErrorIs(t, svc.Logout(ctx, ""), ErrInvalidToken)

	_, err = svc.Refresh(ctx, session.RefreshToken, session.User)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConfirmEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	user, err := svc.Users.FindByID(ctx, session.User.ID)
	require.NoError(t, err)
	require.False(t, user.EmailConfirmed)

	assert.ErrorIs(t, svc.ConfirmEmail(ctx, user.ID, "bogus"), ErrInvalidToken)
	assert.ErrorIs(t, svc.ConfirmEmail(ctx, 9999, svc.ConfirmationToken(user)), ErrNotFound)

	require.NoError(t, svc.ConfirmEmail(ctx, user.ID, svc.ConfirmationToken(user)))

	confirmed, err := svc.Users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
}
