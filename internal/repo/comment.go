package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hryhorenko/commentsapp/internal/models"
)

var ErrCommentNotFound = errors.New("comment not found")

type CommentRepo struct {
	DB *gorm.DB
}

func (r *CommentRepo) Create(ctx context.Context, c *models.Comment) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CommentRepo) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.DB.WithContext(ctx).Preload("User").Where("id = ?", id).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// ListAll loads the full flat comment set with authors joined. Tree
// assembly, sorting and pagination happen in memory in the service.
func (r *CommentRepo) ListAll(ctx context.Context) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.DB.WithContext(ctx).Preload("User").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateText mutates body text and the updated timestamp only.
func (r *CommentRepo) UpdateText(ctx context.Context, id uint, text string) (*models.Comment, error) {
	result := r.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]any{"text": text, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCommentNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the row by id. Descendants are left in place; the tree
// builder applies the configured orphan policy on read.
func (r *CommentRepo) Delete(ctx context.Context, id uint) error {
	result := r.DB.WithContext(ctx).Delete(&models.Comment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}
