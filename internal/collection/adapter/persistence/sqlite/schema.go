package sqlite

import (
	"context"
	"fmt"
)

const nowDefault = `DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))`

// tables mirrors the hosted schema the dashboard was built against. The
// timestamp columns differ between tables on purpose: media_assets, profiles
// and live_settings have no created_at.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS poems (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category TEXT,
		created_at TEXT ` + nowDefault + `,
		updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT,
		youtube_url TEXT,
		video_url TEXT,
		platform TEXT,
		video_type TEXT DEFAULT 'long',
		is_published INTEGER NOT NULL DEFAULT 1,
		created_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS media_assets (
		id TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL DEFAULT 'profile',
		file_url TEXT NOT NULL,
		updated_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		content_id TEXT NOT NULL,
		sender_name TEXT,
		is_anonymous INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		is_approved INTEGER NOT NULL DEFAULT 0,
		created_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		id TEXT PRIMARY KEY,
		sender_name TEXT,
		is_anonymous INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		contact_method TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		display_name TEXT,
		profile_image TEXT,
		updated_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS live_settings (
		id TEXT PRIMARY KEY,
		youtubeId TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT ` + nowDefault + `
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		message TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT ` + nowDefault + `
	)`,
}

// Bootstrap creates the dashboard tables that do not exist yet. Existing
// tables are left as they are.
func (b *Backend) Bootstrap(ctx context.Context) error {
	for _, ddl := range tables {
		if _, err := b.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	b.log.Infof("schema ready (%d tables)", len(tables))
	return nil
}
