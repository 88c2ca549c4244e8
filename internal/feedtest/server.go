// Package feedtest provides a scriptable in-process ABX server for tests and
// local development.
package feedtest

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/transport"
	"github.com/1ureka/abxclient/internal/util"
)

// Truncation makes the stream stop part way through the frame of Sequence,
// after Bytes bytes, and then close.
type Truncation struct {
	Sequence uint32
	Bytes    int
}

// Script describes how the server misbehaves. Packets is the authoritative
// book: everything the server could ever send.
type Script struct {
	Packets []protocol.Packet

	Drop      map[uint32]bool // never sent during stream-all
	Malformed map[uint32]bool // sent during stream-all with an invalid side byte
	Duplicate map[uint32]bool // sent twice during stream-all
	Truncate  *Truncation

	FailResend  map[uint32]bool // connection closed instead of answering
	BadResend   map[uint32]bool // answered with an invalid side byte
	WrongResend map[uint32]bool // answered with the next packet's frame
}

// Request is one client request as seen by the server.
type Request struct {
	Op       uint8
	Sequence uint32 // 0 for stream-all
}

// Server is a fake ABX exchange server. Like the real one it closes the
// connection after answering a stream-all request, and keeps it open
// across resend requests.
type Server struct {
	script Script
	book   map[uint32]protocol.Packet

	listener net.Listener
	httpSrv  *http.Server

	mu       sync.Mutex
	requests []Request
	conns    int
	active   map[io.Closer]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewServer creates a server for the given script. Call Start or
// StartWebSocket to begin serving.
func NewServer(script Script) *Server {
	book := make(map[uint32]protocol.Packet, len(script.Packets))
	for _, p := range script.Packets {
		book[p.Sequence] = p
	}
	return &Server{script: script, book: book, active: make(map[io.Closer]struct{})}
}

// Start listens on addr over plain TCP. Use "127.0.0.1:0" for a random port.
// It returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return listener.Addr().String(), nil
}

// StartWebSocket serves the same protocol over binary WebSocket messages at
// path on addr. It returns the bound address.
func (s *Server) StartWebSocket(addr, path string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		defer s.untrack(conn)
		s.handle(transport.NewWSStream(conn))
	})

	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		_ = s.httpSrv.Serve(listener)
	}()

	return listener.Addr().String(), nil
}

// Close stops accepting connections, closes the open ones and waits for
// every handler, TCP or WebSocket, to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	open := make([]io.Closer, 0, len(s.active))
	for c := range s.active {
		open = append(open, c)
	}
	s.mu.Unlock()

	var err error
	if s.httpSrv != nil {
		// Shutdown does not touch hijacked WebSocket connections
		err = s.httpSrv.Shutdown(context.Background())
	} else if s.listener != nil {
		err = s.listener.Close()
	}
	for _, c := range open {
		c.Close()
	}
	s.wg.Wait()
	return err
}

// Requests returns a copy of every request received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResendRequests returns the sequences of resend requests, in order.
func (s *Server) ResendRequests() []uint32 {
	var out []uint32
	for _, r := range s.Requests() {
		if r.Op == protocol.OpResend {
			out = append(out, r.Sequence)
		}
	}
	return out
}

// Connections returns how many connections have been accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		util.LogDebug("feedtest: accepted conn %s", util.ConnTag(conn))
		go func() {
			defer s.untrack(conn)
			s.handle(conn)
		}()
	}
}

// track registers a live connection and its handler. It returns false once
// Close has started; the caller must then drop conn.
func (s *Server) track(conn io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns++
	s.active[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn io.Closer) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
}

// handle serves one connection until the client closes it or the script
// says to hang up.
func (s *Server) handle(conn io.ReadWriteCloser) {
	defer conn.Close()

	op := make([]byte, 1)
	for {
		if _, err := io.ReadFull(conn, op); err != nil {
			return
		}

		switch op[0] {
		case protocol.OpStreamAll:
			if _, err := io.ReadFull(conn, make([]byte, 1)); err != nil {
				return
			}
			s.record(Request{Op: protocol.OpStreamAll})
			s.streamAll(conn)
			return

		case protocol.OpResend:
			raw := make([]byte, 4)
			if _, err := io.ReadFull(conn, raw); err != nil {
				return
			}
			seq := binary.BigEndian.Uint32(raw)
			s.record(Request{Op: protocol.OpResend, Sequence: seq})
			if !s.resend(conn, seq) {
				return
			}

		default:
			util.LogDebug("feedtest: unknown opcode 0x%02x, closing", op[0])
			return
		}
	}
}

func (s *Server) streamAll(w io.Writer) {
	for _, p := range s.script.Packets {
		if t := s.script.Truncate; t != nil && t.Sequence == p.Sequence {
			frame := protocol.EncodeFrame(p)
			_, _ = w.Write(frame[:min(t.Bytes, len(frame))])
			return
		}
		if s.script.Drop[p.Sequence] {
			continue
		}

		frame := protocol.EncodeFrame(p)
		if s.script.Malformed[p.Sequence] {
			frame[4] = '?'
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if s.script.Duplicate[p.Sequence] {
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
	}
}

// resend answers one resend request; it returns false when the connection
// should be closed.
func (s *Server) resend(w io.Writer, seq uint32) bool {
	if s.script.FailResend[seq] {
		return false
	}

	p, ok := s.book[seq]
	if !ok {
		return false
	}

	if s.script.WrongResend[seq] {
		p.Sequence = seq + 1
	}
	frame := protocol.EncodeFrame(p)
	if s.script.BadResend[seq] {
		frame[4] = '?'
	}

	_, err := w.Write(frame)
	return err == nil
}
