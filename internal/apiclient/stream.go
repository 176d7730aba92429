package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/smartmark/smartmark/internal/domain"
)

// ChangeStream is one realtime subscription: a websocket delivering the
// session user's row change events. Close it when the session ends so the
// server can drop the channel.
type ChangeStream struct {
	conn   *websocket.Conn
	events chan domain.ChangeEvent
	done   chan struct{}
}

// SubscribeChanges opens the realtime websocket and starts decoding events.
// The returned stream's Events channel is closed when the connection drops.
func (c *Client) SubscribeChanges(ctx context.Context) (*ChangeStream, error) {
	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL+"/api/realtime", header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to open realtime stream: %w", err)
	}

	stream := &ChangeStream{
		conn:   conn,
		events: make(chan domain.ChangeEvent, 16),
		done:   make(chan struct{}),
	}
	go stream.readLoop()
	return stream, nil
}

// Events delivers decoded change events until the stream closes.
func (s *ChangeStream) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Close tears the subscription down. Safe to call more than once.
func (s *ChangeStream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.conn.Close()
}

func (s *ChangeStream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var event domain.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// Malformed frame: skip it, the reducer treats unknown
			// events as no-ops anyway.
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func websocketURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://"), nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://"), nil
	default:
		return "", fmt.Errorf("unsupported server url: %s", baseURL)
	}
}
