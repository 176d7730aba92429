package domain

import "strings"

// DedupKey builds the case-insensitive composite key used to decide whether
// a local bookmark already exists server-side. The URL part prefers the
// normalized form so that "https://a.com" and "a.com/" collide.
func DedupKey(title, rawURL string) string {
	urlPart, err := NormalizeURL(rawURL)
	if err != nil {
		urlPart = strings.TrimSpace(rawURL)
	}
	return strings.ToLower(strings.TrimSpace(title)) + "::" + strings.ToLower(urlPart)
}

// UnsyncedBookmarks returns the local bookmarks not yet present in the
// server list, in their original order. Duplicate local entries are emitted
// only once.
func UnsyncedBookmarks(local, server []Bookmark) []Bookmark {
	seen := make(map[string]struct{}, len(server))
	for _, b := range server {
		seen[DedupKey(b.Title, b.URL)] = struct{}{}
	}

	unsynced := make([]Bookmark, 0, len(local))
	for _, b := range local {
		key := DedupKey(b.Title, b.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unsynced = append(unsynced, b)
	}
	return unsynced
}
