package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
	"github.com/smartmark/smartmark/internal/logger"
	"github.com/smartmark/smartmark/internal/store/postgres"
)

// User-facing validation messages, kept stable because clients display them.
const (
	msgUnauthorized  = "Unauthorized"
	msgTitleRequired = "Title is required."
	msgURLRequired   = "A valid URL is required."
	msgIDRequired    = "Bookmark id is required."
	msgNotFound      = "Bookmark not found."
)

type createBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type bookmarkResponse struct {
	Bookmark domain.Bookmark `json:"bookmark"`
}

type bookmarkListResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// ListBookmarks handles GET /api/bookmarks.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := mw.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		bookmarks, err := d.Bookmarks.ListBookmarks(r.Context(), ident.ID)
		if err != nil {
			d.Logger.Error("failed to list bookmarks",
				logger.String("user_id", ident.ID),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to load bookmarks.")
			return
		}

		writeJSON(w, http.StatusOK, bookmarkListResponse{Bookmarks: bookmarks})
	}
}

// CreateBookmark handles POST /api/bookmarks. Validation failures name the
// offending field; the URL is normalized before it is stored.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := mw.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

		var req createBookmarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Malformed body reads as "no fields supplied": title fails first.
			writeError(w, http.StatusBadRequest, msgTitleRequired)
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, msgTitleRequired)
			return
		}

		normalizedURL, err := domain.NormalizeURL(req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgURLRequired)
			return
		}

		created, err := d.Bookmarks.CreateBookmark(r.Context(), ident.ID, title, normalizedURL)
		if err != nil {
			d.Logger.Error("failed to create bookmark",
				logger.String("user_id", ident.ID),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to add bookmark.")
			return
		}

		publishChange(d, r, ident.ID, domain.ChangeEvent{
			Kind: domain.EventInsert,
			New:  &created,
		})

		writeJSON(w, http.StatusOK, bookmarkResponse{Bookmark: created})
	}
}

// DeleteBookmark handles DELETE /api/bookmarks/{id}. Owner scoping happens
// in the store; a foreign id is indistinguishable from an absent one.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := mw.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, msgIDRequired)
			return
		}

		deleted, err := d.Bookmarks.DeleteBookmark(r.Context(), ident.ID, id)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				writeError(w, http.StatusNotFound, msgNotFound)
				return
			}
			d.Logger.Error("failed to delete bookmark",
				logger.String("user_id", ident.ID),
				logger.String("bookmark_id", id),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to delete bookmark.")
			return
		}

		publishChange(d, r, ident.ID, domain.ChangeEvent{
			Kind: domain.EventDelete,
			Old:  &deleted,
		})

		w.WriteHeader(http.StatusNoContent)
	}
}

// publishChange fans the event out to the user's open sessions. Best effort:
// the row is already committed, sessions that miss the event converge on
// their next list load.
func publishChange(d deps.Deps, r *http.Request, userID string, event domain.ChangeEvent) {
	if d.Events == nil {
		return
	}
	if err := d.Events.PublishChange(r.Context(), userID, event); err != nil {
		d.Logger.Warn("failed to publish change event",
			logger.String("user_id", userID),
			logger.String("event", string(event.Kind)),
			logger.Error(err))
	}
}
