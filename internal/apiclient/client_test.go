package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartmark/smartmark/internal/domain"
)

func TestListBookmarks(t *testing.T) {
	want := []domain.Bookmark{
		{
			ID:        "bm-1",
			UserID:    "user-1",
			Title:     "Go",
			URL:       "https://go.dev/",
			CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/bookmarks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"bookmarks": want})
	}))
	defer srv.Close()

	got, err := New(srv.URL, "tok").ListBookmarks(context.Background())
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("ListBookmarks = %+v, want %+v", got, want)
	}
}

func TestCreateBookmark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/bookmarks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"bookmark": domain.Bookmark{
			ID:     "bm-1",
			UserID: "user-1",
			Title:  req["title"],
			URL:    req["url"],
		}})
	}))
	defer srv.Close()

	got, err := New(srv.URL, "tok").CreateBookmark(context.Background(), "Go", "https://go.dev/")
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	if got.ID != "bm-1" || got.Title != "Go" || got.URL != "https://go.dev/" {
		t.Errorf("CreateBookmark = %+v", got)
	}
}

func TestDeleteBookmarkNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/bookmarks/bm-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, "tok").DeleteBookmark(context.Background(), "bm-1"); err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "stale").ListBookmarks(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Bookmark not found."})
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").DeleteBookmark(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "Bookmark not found." {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not json", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").DeleteBookmark(context.Background(), "bm-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("message = %q, want status text fallback", apiErr.Message)
	}
}
