package comment

import (
	"sort"
	"strings"
	"time"

	"github.com/hryhorenko/commentsapp/internal/models"
)

// OrphanPolicy decides what happens to comments whose parent id is not
// present in the loaded set (e.g. after a parent was deleted).
type OrphanPolicy int

const (
	// OrphanDrop leaves orphans out of the tree entirely. This matches
	// the historical behavior and is the default.
	OrphanDrop OrphanPolicy = iota
	// OrphanPromote turns orphans into root comments.
	OrphanPromote
)

type View struct {
	ID          uint      `json:"id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	ParentID    *uint     `json:"parent_id"`
	FileName    string    `json:"file_name,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Replies     []View    `json:"replies"`
}

type ListOptions struct {
	PageSize   int    // defaults to 25
	PageNumber int    // 1-indexed, defaults to 1
	SortBy     string // username | email | createddate; anything else keeps fetch order
	Descending bool
	Orphans    OrphanPolicy
}

type node struct {
	comment *models.Comment
	replies []*node
}

// BuildTree reconstructs the reply forest from the flat comment set,
// sorts and paginates the roots, and projects the page to display views.
// Only roots count against pagination; the returned views contain the
// full transitive reply closure of exactly the paginated roots. Reply
// lists are always ordered by creation time ascending, regardless of the
// root-level sort key.
func BuildTree(comments []models.Comment, opts ListOptions) []View {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.PageNumber < 1 {
		opts.PageNumber = 1
	}

	index := make(map[uint]*node, len(comments))
	for i := range comments {
		index[comments[i].ID] = &node{comment: &comments[i]}
	}

	var roots []*node
	for i := range comments {
		n := index[comments[i].ID]
		switch {
		case comments[i].ParentID == nil:
			roots = append(roots, n)
		default:
			parent, ok := index[*comments[i].ParentID]
			if ok {
				parent.replies = append(parent.replies, n)
			} else if opts.Orphans == OrphanPromote {
				roots = append(roots, n)
			}
		}
	}

	sortRoots(roots, opts.SortBy, opts.Descending)

	from := (opts.PageNumber - 1) * opts.PageSize
	if from > len(roots) {
		from = len(roots)
	}
	to := from + opts.PageSize
	if to > len(roots) {
		to = len(roots)
	}

	views := make([]View, 0, to-from)
	for _, n := range roots[from:to] {
		views = append(views, project(n))
	}
	return views
}

func sortRoots(roots []*node, sortBy string, descending bool) {
	var less func(a, b *node) bool
	switch strings.ToLower(sortBy) {
	case "username":
		less = func(a, b *node) bool { return a.comment.User.Username < b.comment.User.Username }
	case "email":
		less = func(a, b *node) bool { return a.comment.User.Email < b.comment.User.Email }
	case "createddate":
		less = func(a, b *node) bool { return a.comment.CreatedAt.Before(b.comment.CreatedAt) }
	default:
		// Unrecognized or absent sort key keeps the fetch order.
		return
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if descending {
			return less(roots[j], roots[i])
		}
		return less(roots[i], roots[j])
	})
}

func project(n *node) View {
	sort.SliceStable(n.replies, func(i, j int) bool {
		return n.replies[i].comment.CreatedAt.Before(n.replies[j].comment.CreatedAt)
	})

	replies := make([]View, 0, len(n.replies))
	for _, r := range n.replies {
		replies = append(replies, project(r))
	}

	c := n.comment
	return View{
		ID:          c.ID,
		Text:        c.Text,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Username:    c.User.Username,
		Email:       c.User.Email,
		ParentID:    c.ParentID,
		FileName:    c.FileName,
		FilePath:    c.FilePath,
		ContentType: c.ContentType,
		Replies:     replies,
	}
}
