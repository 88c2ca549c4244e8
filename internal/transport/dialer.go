package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/1ureka/abxclient/internal/util"
)

// Scheme selects how the byte stream is carried.
type Scheme string

const (
	SchemeTCP       Scheme = "tcp"
	SchemeWebSocket Scheme = "ws"
)

// Dialer opens connections to one feed server. Each call to Dial yields a
// fresh, independent Conn.
type Dialer struct {
	Addr    string // host:port
	Scheme  Scheme // defaults to SchemeTCP
	WSPath  string // request path for SchemeWebSocket, defaults to "/"
	Options Options
}

// NewDialer returns a TCP dialer for addr.
func NewDialer(addr string, opts Options) *Dialer {
	return &Dialer{Addr: addr, Scheme: SchemeTCP, Options: opts}
}

// Dial connects to the server. The returned Conn is closed automatically when
// ctx is done.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	var (
		s   Stream
		err error
	)

	switch d.Scheme {
	case "", SchemeTCP:
		s, err = d.dialTCP(ctx)
	case SchemeWebSocket:
		s, err = d.dialWebSocket(ctx)
	default:
		return nil, fmt.Errorf("unsupported transport scheme %q", d.Scheme)
	}
	if err != nil {
		return nil, err
	}

	util.Stats.AddConn()
	util.LogDebug("connected to %s (%s)", d.Addr, d.scheme())
	return NewConn(ctx, s, d.Options), nil
}

func (d *Dialer) dialTCP(ctx context.Context) (Stream, error) {
	nd := net.Dialer{Timeout: d.Options.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Addr, err)
	}
	util.LogDebug("tcp conn %s: %s -> %s", util.ConnTag(conn), conn.LocalAddr(), conn.RemoteAddr())
	return conn, nil
}

func (d *Dialer) dialWebSocket(ctx context.Context) (Stream, error) {
	wsURL := d.URL()
	dialer := websocket.Dialer{HandshakeTimeout: d.Options.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server %s: %w", wsURL, err)
	}
	return newWSStream(conn), nil
}

// URL returns the WebSocket URL used for SchemeWebSocket.
func (d *Dialer) URL() string {
	path := d.WSPath
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: "ws", Host: d.Addr, Path: path}
	return u.String()
}

func (d *Dialer) scheme() Scheme {
	if d.Scheme == "" {
		return SchemeTCP
	}
	return d.Scheme
}
