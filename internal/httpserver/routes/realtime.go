package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/handlers"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
)

func init() { Register(registerRealtime) }

func registerRealtime(r chi.Router, d deps.Deps) {
	r.With(mw.Auth(d.Verifier), mw.SyncProfile(d.Profiles, d.Logger)).
		Get("/api/realtime", handlers.Realtime(d))
}
