package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/musicard/musicard/internal/profile"
)

// schema is the MusiCard relational schema. Init is idempotent so it can be
// re-run through the admin endpoint.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	username         TEXT PRIMARY KEY,
	display_name     TEXT NOT NULL DEFAULT '',
	bio              TEXT NOT NULL DEFAULT '',
	icon_url         TEXT NOT NULL DEFAULT '',
	theme            TEXT NOT NULL DEFAULT 'midnight',
	layout           TEXT NOT NULL DEFAULT 'grid-3x3',
	social_twitter   TEXT NOT NULL DEFAULT '',
	social_instagram TEXT NOT NULL DEFAULT '',
	social_youtube   TEXT NOT NULL DEFAULT '',
	social_website   TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	view_count       BIGINT NOT NULL DEFAULT 0,
	public           BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS songs (
	username     TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	position     INT NOT NULL,
	title        TEXT NOT NULL,
	artist       TEXT NOT NULL,
	cover_url    TEXT NOT NULL DEFAULT '',
	genre        TEXT NOT NULL DEFAULT '',
	release_year INT NOT NULL DEFAULT 0,
	preview_url  TEXT NOT NULL DEFAULT '',
	video_id     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (username, position)
);

CREATE TABLE IF NOT EXISTS image_cache (
	owner        TEXT NOT NULL,
	class        TEXT NOT NULL,
	external_url TEXT NOT NULL,
	blob_url     TEXT NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL,
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT 'manual',
	PRIMARY KEY (owner, class, external_url)
);
`

// Init creates the schema if it does not exist.
func (db *DB) Init(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Migrate bulk-loads a JSON document of username -> profile, the export
// format of the local file store. Existing rows are replaced.
func (db *DB) Migrate(ctx context.Context, payload []byte) (int, error) {
	var profiles map[string]*profile.Profile
	if err := json.Unmarshal(payload, &profiles); err != nil {
		return 0, fmt.Errorf("parsing migration payload: %w", err)
	}

	repo := db.Profiles()
	migrated := 0
	for username, p := range profiles {
		if p == nil {
			continue
		}
		p.Username = username
		if err := p.Validate(); err != nil {
			return migrated, fmt.Errorf("profile %q: %w", username, err)
		}
		if err := repo.Save(ctx, p); err != nil {
			return migrated, fmt.Errorf("migrating %q: %w", username, err)
		}
		migrated++
	}
	return migrated, nil
}

// Stats holds aggregate counts for the admin endpoint.
type Stats struct {
	Users      int   `json:"users"`
	Songs      int   `json:"songs"`
	TotalViews int64 `json:"totalViews"`
}

// Stats returns aggregate user/song/view counts.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM songs),
			(SELECT COALESCE(SUM(view_count), 0) FROM users)
	`).Scan(&s.Users, &s.Songs, &s.TotalViews)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &s, nil
}
