package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
	"github.com/smartmark/smartmark/internal/logger"
)

const writeTimeout = 10 * time.Second

// Realtime handles GET /api/realtime. It upgrades the connection to a
// websocket and forwards the caller's change events verbatim from the
// broker. One subscription per connection; torn down when either side
// closes, so sessions never leak their channel.
func Realtime(d deps.Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(d.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := mw.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub := d.Broker.Subscribe(ctx, ident.ID)
		defer func() { _ = sub.Close() }()

		d.Logger.Info("realtime session opened",
			logger.String("user_id", ident.ID))

		// Drain client frames so pings are answered and a client close
		// terminates the session.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		events := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				d.Logger.Info("realtime session closed",
					logger.String("user_id", ident.ID))
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					d.Logger.Debug("realtime write failed",
						logger.String("user_id", ident.ID),
						logger.Error(err))
					return
				}
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}
