// nightboard/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Thumbnails for image attachments
ALTER TABLE attachments ADD COLUMN thumbnail_path TEXT;
		`,
	},
	{
		Version: 2,
		Query: `
CREATE INDEX IF NOT EXISTS idx_announcements_time ON announcements(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_at);
		`,
	},
}
