package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/smartmark/smartmark/internal/httpserver/deps"
)

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports whether both collaborators answer: Postgres (the bookmark
// store) and Redis (the realtime fan-out).
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"postgres": checkPostgres(ctx, d),
			"redis":    checkRedis(ctx, d),
		}

		ready := true
		for _, c := range components {
			if !c.OK {
				ready = false
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components})
	}
}

func checkPostgres(ctx context.Context, d deps.Deps) componentStatus {
	if d.PGPool == nil {
		return componentStatus{OK: false, Error: "pool not initialized"}
	}
	if err := d.PGPool.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: false, Error: "client not initialized"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}
