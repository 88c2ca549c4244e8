// ABX mock exchange: serves a generated order book over the ABX protocol so
// the client can be exercised locally. Selected sequences can be dropped from
// the stream, sent malformed, or the stream can be cut short.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/1ureka/abxclient/internal/feedtest"
	"github.com/1ureka/abxclient/internal/util"
)

type mockFlags struct {
	port          int
	listen        bool
	ws            bool
	wsPath        string
	count         int
	seed          uint64
	drop          []uint
	malformed     []uint
	failResend    []uint
	truncateAfter int
	debug         bool
}

var flags mockFlags

var rootCmd = &cobra.Command{
	Use:          "abxmock",
	Short:        "Serve a fake ABX exchange feed",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flags.debug {
			util.EnableDebug()
		}
		script, err := flags.script()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), script)
	},
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&flags.port, "port", 3000, "port to listen on")
	f.BoolVar(&flags.listen, "listen", false, "listen on all network interfaces")
	f.BoolVar(&flags.ws, "ws", false, "serve over WebSocket instead of TCP")
	f.StringVar(&flags.wsPath, "ws-path", "/", "WebSocket request path")
	f.IntVar(&flags.count, "count", 14, "number of packets in the book")
	f.Uint64Var(&flags.seed, "seed", 1, "seed for the generated packets")
	f.UintSliceVar(&flags.drop, "drop", []uint{3, 7}, "sequences omitted from the stream")
	f.UintSliceVar(&flags.malformed, "malformed", nil, "sequences streamed with an invalid side")
	f.UintSliceVar(&flags.failResend, "fail-resend", nil, "sequences whose resend closes the connection")
	f.IntVar(&flags.truncateAfter, "truncate-after", 0, "cut the stream 7 bytes into the frame of this sequence (0 disables)")
	f.BoolVar(&flags.debug, "debug", false, "enable debug logging")
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}

// script turns the flags into a server script.
func (f *mockFlags) script() (feedtest.Script, error) {
	if f.count < 0 {
		return feedtest.Script{}, fmt.Errorf("invalid --count %d", f.count)
	}

	s := feedtest.Script{
		Packets:    feedtest.Random(rand.New(rand.NewPCG(f.seed, f.seed)), f.count),
		Drop:       toSet(f.drop),
		Malformed:  toSet(f.malformed),
		FailResend: toSet(f.failResend),
	}
	if f.truncateAfter > 0 {
		s.Truncate = &feedtest.Truncation{Sequence: uint32(f.truncateAfter), Bytes: 7}
	}
	return s, nil
}

func toSet(seqs []uint) map[uint32]bool {
	out := make([]uint32, len(seqs))
	for i, s := range seqs {
		out[i] = uint32(s)
	}
	return feedtest.Set(out...)
}

func serve(ctx context.Context, script feedtest.Script) error {
	host := "127.0.0.1"
	if flags.listen {
		host = ""
	}
	addr := net.JoinHostPort(host, strconv.Itoa(flags.port))

	srv := feedtest.NewServer(script)
	var (
		bound string
		err   error
	)
	if flags.ws {
		bound, err = srv.StartWebSocket(addr, flags.wsPath)
	} else {
		bound, err = srv.Start(addr)
	}
	if err != nil {
		return err
	}

	util.LogSuccess("serving %d packets on %s (ws=%v)", len(script.Packets), bound, flags.ws)
	<-ctx.Done()

	if err := srv.Close(); err != nil {
		util.LogDebug("failed to close server: %v", err)
	}
	util.LogInfo("served %d connections", srv.Connections())
	return nil
}
