package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
	"github.com/smartmark/smartmark/internal/logger"
)

// Session handles GET /api/session: it echoes the validated identity so
// clients can render who is signed in without decoding the token themselves.
func Session(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := mw.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, ident)
	}
}

type mintTokenRequest struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

type mintTokenResponse struct {
	Token string `json:"token"`
}

// MintToken handles POST /api/session/token. Dev-only stand-in for the
// identity provider, disabled unless SMARTMARK_DEV_TOKENS is set; the
// route answers 404 when disabled so it stays invisible in production.
func MintToken(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.DevTokens {
			http.NotFound(w, r)
			return
		}

		var req mintTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			writeError(w, http.StatusBadRequest, "User id is required.")
			return
		}

		token, err := auth.MintToken(auth.Identity{
			ID:        strings.TrimSpace(req.ID),
			Email:     req.Email,
			FullName:  req.FullName,
			AvatarURL: req.AvatarURL,
		}, d.JWTSecret, d.JWTIssuer, d.TokenTTL)
		if err != nil {
			d.Logger.Error("failed to mint token", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to mint token.")
			return
		}

		writeJSON(w, http.StatusOK, mintTokenResponse{Token: token})
	}
}
