package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hryhorenko/commentsapp/internal/hash"
	"github.com/hryhorenko/commentsapp/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// UserRepo is the credential store: it owns password hashes and role
// assignments, leaving hash policy to the hash package.
type UserRepo struct {
	DB *gorm.DB
}

// CreateUser hashes the password and inserts the user. Email and username
// uniqueness (case-insensitive) is enforced here, not pre-checked by
// callers.
func (r *UserRepo) CreateUser(ctx context.Context, u *models.User, password string) error {
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = pwHash

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.User{}).
			Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", u.Email, u.Username).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUser
		}
		return tx.Create(u).Error
	})
}

func (r *UserRepo) CheckPassword(u *models.User, password string) bool {
	return hash.CheckPassword(u.PasswordHash, password)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// EnsureRole creates the role if it does not exist yet.
func (r *UserRepo) EnsureRole(ctx context.Context, name string) error {
	role := models.Role{Name: name}
	return r.DB.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&role).Error
}

func (r *UserRepo) AssignRole(ctx context.Context, u *models.User, roleName string) error {
	var role models.Role
	err := r.DB.WithContext(ctx).Where("name = ?", roleName).First(&role).Error
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(u).Association("Roles").Append(&role)
}

func (r *UserRepo) ConfirmEmail(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("email_confirmed", true).Error
}
