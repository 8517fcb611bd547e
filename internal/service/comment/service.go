// Package comment implements the comment board: threaded storage,
// tree assembly with root-level sorting and pagination, and CRUD with
// optional file attachments.
package comment

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hryhorenko/commentsapp/internal/events"
	"github.com/hryhorenko/commentsapp/internal/logging"
	"github.com/hryhorenko/commentsapp/internal/models"
	"github.com/hryhorenko/commentsapp/internal/repo"
	"github.com/hryhorenko/commentsapp/internal/storage"
)

var (
	ErrValidation     = errors.New("invalid input")
	ErrNotFound       = errors.New("comment not found")
	ErrParentNotFound = errors.New("parent comment not found")
)

const commentEventsTopic = "comment_events"

// Indexer pushes created comments into the search backend.
type Indexer interface {
	IndexComment(ctx context.Context, id uint, text, username, email string) error
}

type Service struct {
	Comments *repo.CommentRepo
	Files    *storage.FileStore
	Events   events.Publisher
	Search   Indexer

	// Orphans is the reconciliation policy applied on read for comments
	// whose parent no longer exists.
	Orphans OrphanPolicy
}

type Upload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

type CreateInput struct {
	Text     string
	ParentID *uint
	File     *Upload
}

// List loads the full flat set and assembles the display forest.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]View, error) {
	opts.Orphans = s.Orphans
	all, err := s.Comments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	return BuildTree(all, opts), nil
}

// Create persists a comment for the author. When a file is attached it is
// written to storage first; the comment row is only inserted after the
// file write completed.
func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (*View, error) {
	l := logging.FromContext(ctx).With("svc", "comment.create", "user_id", userID)

	if in.Text == "" || userID == 0 {
		return nil, ErrValidation
	}

	if in.ParentID != nil {
		if _, err := s.Comments.GetByID(ctx, *in.ParentID); err != nil {
			if errors.Is(err, repo.ErrCommentNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
	}

	c := &models.Comment{
		Text:     in.Text,
		UserID:   userID,
		ParentID: in.ParentID,
	}

	if in.File != nil {
		info, err := s.Files.Save(in.File.Name, in.File.ContentType, in.File.Reader)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		c.FileName = info.FileName
		c.FilePath = info.FilePath
		c.ContentType = info.ContentType
	}

	if err := s.Comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	created, err := s.Comments.GetByID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("reload comment: %w", err)
	}

	if s.Search != nil {
		if err := s.Search.IndexComment(ctx, created.ID, created.Text, created.User.Username, created.User.Email); err != nil {
			l.Error("search index failed", "comment_id", created.ID, "error", err)
		}
	}
	s.publish(ctx, map[string]any{
		"type":       "comment_created",
		"comment_id": created.ID,
		"user_id":    userID,
	})

	view := project(&node{comment: created})
	return &view, nil
}

// Update changes the body text only; the updated timestamp moves as a
// side effect.
func (s *Service) Update(ctx context.Context, id uint, text string) (*View, error) {
	if text == "" || id == 0 {
		return nil, ErrValidation
	}

	updated, err := s.Comments.UpdateText(ctx, id, text)
	if err != nil {
		if errors.Is(err, repo.ErrCommentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.publish(ctx, map[string]any{
		"type":       "comment_updated",
		"comment_id": id,
		"user_id":    updated.UserID,
	})

	view := project(&node{comment: updated})
	return &view, nil
}

// Delete removes the comment by id. Descendants are not cascaded; they
// fall under the orphan policy on the next read.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.Comments.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrCommentNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.publish(ctx, map[string]any{
		"type":       "comment_deleted",
		"comment_id": id,
	})
	return nil
}

func (s *Service) publish(ctx context.Context, event map[string]any) {
	if s.Events == nil {
		return
	}
	key := fmt.Sprint(event["comment_id"])
	if err := s.Events.PublishEvent(ctx, commentEventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "error", err)
	}
}
