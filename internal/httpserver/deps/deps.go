package deps

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/logger"
	"github.com/smartmark/smartmark/internal/realtime"
)

// BookmarkStore is what the handlers need from the bookmark repository.
// Implemented by *postgres.Store; tests substitute an in-memory fake.
type BookmarkStore interface {
	ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error)
	CreateBookmark(ctx context.Context, userID, title, url string) (domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, id string) (domain.Bookmark, error)
}

// ProfileStore mirrors identity-provider users into local storage.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p domain.Profile) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Bookmarks BookmarkStore
	Profiles  ProfileStore
	Events    realtime.Publisher // change-event fan-out after mutations
	Broker    *realtime.Broker   // subscription side for the websocket feed
	Verifier  *auth.Verifier     // bearer token validation

	PGPool      *pgxpool.Pool // readiness checks only
	RedisClient *redis.Client // readiness checks only

	AllowedOrigins []string
	DevTokens      bool          // enable the dev-only token mint endpoint
	TokenTTL       time.Duration // lifetime for dev-minted tokens
	JWTSecret      string
	JWTIssuer      string
}
