package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	// Read deadline covers a full think-time gap between answers; the
	// ping/pong action refreshes it well before expiry.
	readDeadline = 5 * time.Minute
)

// WriteTyped marshals and sends one event payload.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse with the given message.
func WriteError(conn *websocket.Conn, msg string) error {
	return WriteTyped(conn, ErrorResponse{Event: EventError, Error: msg})
}

// ReadJSON decodes the next client message into v under the read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	return conn.ReadJSON(v)
}
