package transport

import (
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream presents a WebSocket connection as a byte stream: binary message
// payloads are concatenated in order and message boundaries are ignored.
// A close frame or a dropped connection reads as io.EOF.
type wsStream struct {
	conn *websocket.Conn
	cur  io.Reader
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

// NewWSStream exposes the adapter for servers that accept WebSocket clients.
func NewWSStream(conn *websocket.Conn) Stream {
	return newWSStream(conn)
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.cur == nil {
			mt, r, err := w.conn.NextReader()
			if err != nil {
				if isWSClosure(err) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			w.cur = r
		}

		n, err := w.cur.Read(p)
		if err == io.EOF {
			w.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a best-effort close frame, then closes the socket.
func (w *wsStream) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *wsStream) SetReadDeadline(t time.Time) error  { return w.conn.SetReadDeadline(t) }
func (w *wsStream) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }

func isWSClosure(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
	)
}
