package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musicard/musicard/internal/profile"
)

// ProfileRepository handles profile database operations. A profile maps to
// one row in users plus its ordered rows in songs.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a profile by username.
func (r *ProfileRepository) Get(ctx context.Context, username string) (*profile.Profile, error) {
	query := `
		SELECT username, display_name, bio, icon_url, theme, layout,
		       social_twitter, social_instagram, social_youtube, social_website,
		       created_at, updated_at, view_count, public
		FROM users
		WHERE username = $1
	`
	var p profile.Profile
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&p.Username,
		&p.DisplayName,
		&p.Bio,
		&p.IconURL,
		&p.Theme,
		&p.Layout,
		&p.Social.Twitter,
		&p.Social.Instagram,
		&p.Social.YouTube,
		&p.Social.Website,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.ViewCount,
		&p.Public,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	songs, err := r.songsFor(ctx, username)
	if err != nil {
		return nil, err
	}
	p.Songs = songs
	return &p, nil
}

// GetAll retrieves every profile keyed by username.
func (r *ProfileRepository) GetAll(ctx context.Context) (map[string]*profile.Profile, error) {
	query := `
		SELECT username, display_name, bio, icon_url, theme, layout,
		       social_twitter, social_instagram, social_youtube, social_website,
		       created_at, updated_at, view_count, public
		FROM users
		ORDER BY username
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]*profile.Profile)
	for rows.Next() {
		var p profile.Profile
		if err := rows.Scan(
			&p.Username,
			&p.DisplayName,
			&p.Bio,
			&p.IconURL,
			&p.Theme,
			&p.Layout,
			&p.Social.Twitter,
			&p.Social.Instagram,
			&p.Social.YouTube,
			&p.Social.Website,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.ViewCount,
			&p.Public,
		); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		p.Songs = []profile.Song{}
		profiles[p.Username] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	if err := r.attachSongs(ctx, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Save writes a profile as a full-document replace: the user row is
// upserted and the song list deleted and reinserted in order, in one
// transaction. CreatedAt and the view counter of an existing row are
// preserved; UpdatedAt is stamped with the current time.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	query := `
		INSERT INTO users (username, display_name, bio, icon_url, theme, layout,
		                   social_twitter, social_instagram, social_youtube, social_website,
		                   created_at, updated_at, view_count, public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, 0, $12)
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			icon_url = EXCLUDED.icon_url,
			theme = EXCLUDED.theme,
			layout = EXCLUDED.layout,
			social_twitter = EXCLUDED.social_twitter,
			social_instagram = EXCLUDED.social_instagram,
			social_youtube = EXCLUDED.social_youtube,
			social_website = EXCLUDED.social_website,
			updated_at = EXCLUDED.updated_at,
			public = EXCLUDED.public
		RETURNING created_at, updated_at, view_count
	`
	err = tx.QueryRow(ctx, query,
		p.Username,
		p.DisplayName,
		p.Bio,
		p.IconURL,
		p.Theme,
		p.Layout,
		p.Social.Twitter,
		p.Social.Instagram,
		p.Social.YouTube,
		p.Social.Website,
		now,
		p.Public,
	).Scan(&p.CreatedAt, &p.UpdatedAt, &p.ViewCount)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM songs WHERE username = $1`, p.Username); err != nil {
		return fmt.Errorf("clearing songs: %w", err)
	}

	insert := `
		INSERT INTO songs (username, position, title, artist, cover_url, genre,
		                   release_year, preview_url, video_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, s := range p.Songs {
		if _, err := tx.Exec(ctx, insert,
			p.Username, i, s.Title, s.Artist, s.CoverURL, s.Genre,
			s.ReleaseYear, s.PreviewURL, s.VideoID,
		); err != nil {
			return fmt.Errorf("inserting song %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing save: %w", err)
	}
	return nil
}

// IncrementViews bumps the view counter for a username.
func (r *ProfileRepository) IncrementViews(ctx context.Context, username string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET view_count = view_count + 1 WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("incrementing views: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a profile and its songs.
func (r *ProfileRepository) Delete(ctx context.Context, username string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// songsFor loads the ordered song list for one username.
func (r *ProfileRepository) songsFor(ctx context.Context, username string) ([]profile.Song, error) {
	query := `
		SELECT title, artist, cover_url, genre, release_year, preview_url, video_id
		FROM songs
		WHERE username = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close()

	songs := []profile.Song{}
	for rows.Next() {
		var s profile.Song
		if err := rows.Scan(&s.Title, &s.Artist, &s.CoverURL, &s.Genre,
			&s.ReleaseYear, &s.PreviewURL, &s.VideoID); err != nil {
			return nil, fmt.Errorf("scanning song row: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating song rows: %w", err)
	}
	return songs, nil
}

// attachSongs loads songs for every profile in the map in one query.
func (r *ProfileRepository) attachSongs(ctx context.Context, profiles map[string]*profile.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	query := `
		SELECT username, title, artist, cover_url, genre, release_year, preview_url, video_id
		FROM songs
		ORDER BY username, position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username string
		var s profile.Song
		if err := rows.Scan(&username, &s.Title, &s.Artist, &s.CoverURL, &s.Genre,
			&s.ReleaseYear, &s.PreviewURL, &s.VideoID); err != nil {
			return fmt.Errorf("scanning song row: %w", err)
		}
		if p, ok := profiles[username]; ok {
			p.Songs = append(p.Songs, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating song rows: %w", err)
	}
	return nil
}
