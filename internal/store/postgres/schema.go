package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is applied at startup. Statements are idempotent so restarts and
// multiple instances racing on boot are safe.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         text PRIMARY KEY,
	email      text,
	full_name  text,
	avatar_url text,
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookmarks (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id    text NOT NULL,
	title      text NOT NULL,
	url        text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS bookmarks_user_created_idx
	ON bookmarks (user_id, created_at DESC);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
