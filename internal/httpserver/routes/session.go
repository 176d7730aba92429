package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/handlers"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	r.With(mw.Auth(d.Verifier), mw.SyncProfile(d.Profiles, d.Logger)).
		Get("/api/session", handlers.Session(d))
	// Unauthenticated by design: it stands in for the identity provider.
	r.Post("/api/session/token", handlers.MintToken(d))
}
