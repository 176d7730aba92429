package domain

import (
	"sort"
	"time"
)

// LocalIDPrefix marks bookmarks created in guest mode, before any account
// exists. Server-assigned ids never carry it.
const LocalIDPrefix = "local-"

// Bookmark is the entity shape shared by client and server.
// CreatedAt serializes as RFC 3339 (ISO-8601), which is also the wire format.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// IsLocal reports whether the bookmark was created in guest mode.
func (b Bookmark) IsLocal() bool {
	return len(b.ID) > len(LocalIDPrefix) && b.ID[:len(LocalIDPrefix)] == LocalIDPrefix
}

// Profile mirrors the identity-provider user. It is upserted on every
// authenticated request and never read back by the bookmark logic.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// SortByCreatedAtDesc returns a copy of items ordered newest-first.
// Ties keep their relative order.
func SortByCreatedAtDesc(items []Bookmark) []Bookmark {
	sorted := make([]Bookmark, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}
