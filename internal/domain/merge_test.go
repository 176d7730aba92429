package domain

import "testing"

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{
			name:  "lowercases and trims",
			title: "  React Docs ",
			url:   "https://react.dev/",
			want:  "react docs::https://react.dev/",
		},
		{
			name:  "url is normalized before keying",
			title: "React Docs",
			url:   "react.dev",
			want:  "react docs::https://react.dev/",
		},
		{
			name:  "unnormalizable url falls back to trimmed lowercase",
			title: "Broken",
			url:   " :::: ",
			want:  "broken::::::",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupKey(tt.title, tt.url); got != tt.want {
				t.Errorf("DedupKey(%q, %q) = %q, want %q", tt.title, tt.url, got, tt.want)
			}
		})
	}
}

func TestUnsyncedBookmarks(t *testing.T) {
	server := []Bookmark{
		{ID: "1", Title: "A", URL: "https://a.com"},
	}
	local := []Bookmark{
		{ID: "local-1", Title: "a", URL: "https://a.com/"},
		{ID: "local-2", Title: "B", URL: "https://b.com"},
	}

	got := UnsyncedBookmarks(local, server)
	if len(got) != 1 {
		t.Fatalf("UnsyncedBookmarks returned %d bookmarks, want 1: %+v", len(got), got)
	}
	if got[0].Title != "B" {
		t.Errorf("unsynced bookmark = %+v, want title B", got[0])
	}
}

func TestUnsyncedBookmarksSkipsLocalDuplicates(t *testing.T) {
	local := []Bookmark{
		{ID: "local-1", Title: "Go", URL: "go.dev"},
		{ID: "local-2", Title: "go", URL: "https://go.dev/"},
	}

	got := UnsyncedBookmarks(local, nil)
	if len(got) != 1 {
		t.Fatalf("UnsyncedBookmarks returned %d bookmarks, want 1: %+v", len(got), got)
	}
	if got[0].ID != "local-1" {
		t.Errorf("kept bookmark id = %q, want the first occurrence local-1", got[0].ID)
	}
}

func TestUnsyncedBookmarksEmptyLocal(t *testing.T) {
	if got := UnsyncedBookmarks(nil, []Bookmark{{ID: "1", Title: "A", URL: "https://a.com"}}); len(got) != 0 {
		t.Errorf("UnsyncedBookmarks(nil, server) = %+v, want empty", got)
	}
}
