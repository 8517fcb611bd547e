package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hryhorenko/commentsapp/internal/models"
)

const (
	loginProvider = "commentsapp"
	tokenName     = "RefreshToken"
)

// RefreshTokenRepo is the token ledger: at most one live refresh-token
// row per user. Save overwrites, never appends, which is what makes a
// login replace the previous session.
type RefreshTokenRepo struct {
	DB *gorm.DB
}

// Save upserts the single ledger row for the user.
func (r *RefreshTokenRepo) Save(ctx context.Context, userID uint, value string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.RefreshToken
		err := tx.Where("user_id = ? AND name = ?", userID, tokenName).First(&existing).Error
		switch {
		case err == nil:
			existing.Value = value
			return tx.Save(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.RefreshToken{
				UserID:        userID,
				LoginProvider: loginProvider,
				Name:          tokenName,
				Value:         value,
			}).Error
		default:
			return err
		}
	})
}

// FindByValue returns (nil, nil) when no row matches; the caller decides
// whether a miss is an error.
func (r *RefreshTokenRepo) FindByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.DB.WithContext(ctx).Where("value = ?", value).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// Remove deletes the row. Deleting an already-removed row is not an
// error at this layer.
func (r *RefreshTokenRepo) Remove(ctx context.Context, token *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Delete(&models.RefreshToken{}, token.ID).Error
}
