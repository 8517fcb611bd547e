package models

import "time"

type User struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string `gorm:"uniqueIndex;not null"     json:"email"`
	Username       string `gorm:"uniqueIndex;not null"     json:"username"`
	Name           string `gorm:"not null"                 json:"name"`
	PasswordHash   string `gorm:"not null"                 json:"-"`
	EmailConfirmed bool   `gorm:"default:false"            json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`

	Roles []Role `gorm:"many2many:user_roles" json:"-"`
}

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text      string    `gorm:"not null"                 json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `json:"-"`

	// Self-relation: a comment with a nil ParentID is a root. Reply lists are
	// reconstructed on read, never stored.
	ParentID *uint `gorm:"index" json:"parent_id"`

	FileName    string `json:"file_name,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// RefreshToken is the ledger row binding a user to their currently valid
// refresh token. At most one row per (user, Name) pair exists; a new
// login or refresh overwrites Value instead of appending.
type RefreshToken struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"      json:"id"`
	UserID        uint   `gorm:"uniqueIndex:idx_user_name;not null" json:"user_id"`
	LoginProvider string `gorm:"not null"                      json:"login_provider"`
	Name          string `gorm:"uniqueIndex:idx_user_name;not null" json:"name"`
	Value         string `gorm:"index;not null"                json:"-"`
}
