// nightboard/models/models.go
package models

import (
	"context"
	"database/sql"
	"io"
	"time"
)

// StorageService persists uploaded files. Implementations live in utils.
type StorageService interface {
	// SaveFile streams r under key and returns the public path of the stored object.
	SaveFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	DeleteFile(ctx context.Context, path string) error
}

// --- Accounts ---

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	IsStaff      bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    sql.NullTime
}

type Profile struct {
	ID          int64
	UserID      int64
	IPAddress   string
	LastLoginIP string
	JoinedAt    time.Time
}

// ProfileRow is a profile joined with its user, as shown in the admin console.
type ProfileRow struct {
	Profile
	Username  string
	Email     string
	PostCount int
	IPBlocked bool
}

type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// --- Content ---

type Category struct {
	ID        int64
	Name      string
	Slug      string
	PostCount int
}

type Post struct {
	ID           int64
	Title        string
	Content      string
	CategoryID   int64
	CategoryName string
	CategorySlug string
	AuthorID     int64
	AuthorName   string
	AuthorIP     string
	IsPinned     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	AttachmentCount int
	Attachments     []Attachment
}

type Attachment struct {
	ID               int64
	PostID           int64
	Path             string
	StorageKey       string
	OriginalFilename string
	FileSize         int64
	ThumbnailPath    sql.NullString
	UploadedAt       time.Time
}

type Announcement struct {
	ID         int64
	Title      string
	Content    string
	AuthorID   int64
	AuthorName string
	CreatedAt  time.Time
}

// --- Moderation & System Models ---

type BlockedIP struct {
	ID          int64
	IPAddress   string
	Reason      string
	BlockedAt   time.Time
	BlockedByID sql.NullInt64
	BlockedBy   sql.NullString
}

type AdminAction struct {
	ID        int64
	Timestamp time.Time
	ActorID   int64
	ActorName string
	Action    string
	TargetID  sql.NullInt64
	Details   sql.NullString
}

// BulkResult summarises one admin bulk action over profiles.
type BulkResult struct {
	UsersDeleted int
	PostsDeleted int
	IPsBlocked   int
	// Files holds stored paths to remove once the transaction has committed.
	Files []string
}

type Stats struct {
	Users         int
	Posts         int
	Categories    int
	Attachments   int
	Announcements int
	BlockedIPs    int
}

// --- View helpers ---

type Page struct {
	Number     int
	IsCurrent  bool
	IsEllipsis bool
}

type FormInput struct {
	Title      string
	Content    string
	CategoryID string
	Username   string
	Email      string
}
