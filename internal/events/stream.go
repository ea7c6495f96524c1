package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Stream reads events from the server side of a websocket
type Stream struct {
	conn *websocket.Conn
}

// Dial connects to an event endpoint with a bearer token
func Dial(ctx context.Context, url, token string) (*Stream, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial event stream: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial event stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the next event arrives
func (s *Stream) Next() (Event, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}

// Listen calls fn for each event until ctx is done or the stream fails
func (s *Stream) Listen(ctx context.Context, fn func(Event)) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		ev, err := s.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(ev)
	}
}

// Close ends the stream
func (s *Stream) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
