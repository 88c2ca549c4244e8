package feedtest

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/transport"
	"github.com/1ureka/abxclient/internal/util"
)

func TestMain(m *testing.M) {
	util.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// closeWithin fails the test if srv.Close blocks for longer than d.
func closeWithin(t *testing.T, srv *Server, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("Close did not return while a client was still connected")
	}
}

// TestServerCloseWithOpenClients: a client parked between resend requests
// keeps its handler blocked on read; Close must tear it down and wait for it.
func TestServerCloseWithOpenClients(t *testing.T) {
	testCases := []struct {
		name   string
		scheme transport.Scheme
	}{
		{"tcp", transport.SchemeTCP},
		{"websocket", transport.SchemeWebSocket},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(Script{Packets: Sequential(3)})

			var (
				addr string
				err  error
			)
			if tc.scheme == transport.SchemeWebSocket {
				addr, err = srv.StartWebSocket("127.0.0.1:0", "/")
			} else {
				addr, err = srv.Start("127.0.0.1:0")
			}
			if err != nil {
				t.Fatalf("failed to start server: %v", err)
			}

			d := &transport.Dialer{
				Addr:    addr,
				Scheme:  tc.scheme,
				Options: transport.Options{DialTimeout: time.Second, ReadTimeout: 2 * time.Second},
			}
			conn, err := d.Dial(context.Background())
			if err != nil {
				t.Fatalf("Dial failed: %v", err)
			}
			defer conn.Close()

			req, _ := protocol.EncodeResendRequest(2)
			if err := conn.Send(req); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			frame, err := conn.ReadFrame(protocol.FrameSize)
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if pkt, err := protocol.DecodeFrame(frame); err != nil || pkt.Sequence != 2 {
				t.Fatalf("resend answer: %+v %v", pkt, err)
			}

			closeWithin(t, srv, 3*time.Second)

			if _, err := conn.ReadFrame(protocol.FrameSize); err == nil {
				t.Error("expected the connection to be closed by the server")
			}
			if srv.Connections() != 1 {
				t.Errorf("connections: got %d, want 1", srv.Connections())
			}
			if got := srv.ResendRequests(); len(got) != 1 || got[0] != 2 {
				t.Errorf("resend requests: got %v", got)
			}
		})
	}
}

func TestServerRejectsAfterClose(t *testing.T) {
	srv := NewServer(Script{})
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	closeWithin(t, srv, time.Second)

	d := transport.NewDialer(addr, transport.Options{DialTimeout: 500 * time.Millisecond})
	if conn, err := d.Dial(context.Background()); err == nil {
		conn.Close()
		t.Fatal("expected dial to fail after Close")
	}
}
