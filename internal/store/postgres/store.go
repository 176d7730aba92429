package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartmark/smartmark/internal/domain"
)

// ErrNotFound is returned when a bookmark does not exist or is owned by a
// different user. Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("bookmark not found")

// Store handles Postgres operations for bookmarks and profiles.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Postgres store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListBookmarks returns all bookmarks owned by userID, newest-first.
func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, url, created_at
		   FROM bookmarks
		  WHERE user_id = $1
		  ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]domain.Bookmark, 0)
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}
	return bookmarks, nil
}

// CreateBookmark persists a new bookmark owned by userID and returns it with
// the server-assigned id and creation timestamp.
func (s *Store) CreateBookmark(ctx context.Context, userID, title, url string) (domain.Bookmark, error) {
	var b domain.Bookmark
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookmarks (user_id, title, url)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, title, url, created_at`,
		userID, title, url,
	).Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to create bookmark: %w", err)
	}
	return b, nil
}

// DeleteBookmark removes the bookmark only if it is owned by userID and
// returns the deleted row. Absent and foreign rows both yield ErrNotFound.
// The id::text comparison keeps malformed ids from raising a uuid parse
// error; they simply match nothing.
func (s *Store) DeleteBookmark(ctx context.Context, userID, id string) (domain.Bookmark, error) {
	var b domain.Bookmark
	err := s.pool.QueryRow(ctx,
		`DELETE FROM bookmarks
		  WHERE id::text = $1 AND user_id = $2
		 RETURNING id, user_id, title, url, created_at`,
		id, userID,
	).Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bookmark{}, ErrNotFound
		}
		return domain.Bookmark{}, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return b, nil
}

// UpsertProfile mirrors the identity-provider user into the profiles table.
// Idempotent; called on every authenticated request.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), now())
		 ON CONFLICT (id) DO UPDATE SET
			email      = EXCLUDED.email,
			full_name  = EXCLUDED.full_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()`,
		p.ID, p.Email, p.FullName, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
