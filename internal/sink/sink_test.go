package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/abxclient/internal/protocol"
)

func samplePackets() []protocol.Packet {
	return []protocol.Packet{
		{Symbol: protocol.MustSymbol("MSFT"), Side: protocol.SideBuy, Quantity: 50, Price: 100, Sequence: 1},
		{Symbol: protocol.MustSymbol("AAPL"), Side: protocol.SideSell, Quantity: 30, Price: 98, Sequence: 2},
	}
}

func TestJSONFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	s := &JSONFile{Path: path}

	require.NoError(t, s.Write(context.Background(), samplePackets()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []Record{
		{Symbol: "MSFT", BuySell: "B", Quantity: 50, Price: 100, Sequence: 1},
		{Symbol: "AAPL", BuySell: "S", Quantity: 30, Price: 98, Sequence: 2},
	}, got)

	assert.True(t, strings.HasPrefix(string(data), "[\n    {\n        \"symbol\": \"MSFT\""),
		"expected 4-space indentation, got:\n%s", data)
}

func TestJSONFileEmptyCollection(t *testing.T) {
	var buf bytes.Buffer
	s := &JSONFile{Path: "-", Stdout: &buf}

	require.NoError(t, s.Write(context.Background(), nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONFileReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, (&JSONFile{Path: path}).Write(context.Background(), samplePackets()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := &Redis{Client: rdb, Key: "abx:test", TTL: time.Hour}
	require.NoError(t, s.Write(ctx, samplePackets()))

	members, err := rdb.ZRange(ctx, "abx:test", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"abx:test:1", "abx:test:2"}, members)

	fields, err := rdb.HGetAll(ctx, "abx:test:2").Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"symbol":   "AAPL",
		"buy_sell": "S",
		"quantity": "30",
		"price":    "98",
		"sequence": "2",
	}, fields)

	assert.Equal(t, time.Hour, mr.TTL("abx:test:1"))
}

func TestRedisSinkReplacesIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := &Redis{Client: rdb, Key: "abx:run"}
	require.NoError(t, s.Write(ctx, samplePackets()))
	require.NoError(t, s.Write(ctx, samplePackets()[:1]))

	members, err := rdb.ZRange(ctx, "abx:run", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"abx:run:1"}, members)
}

func TestRedisSinkUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := (&Redis{Client: rdb, Key: "abx"}).Write(context.Background(), samplePackets())
	assert.Error(t, err)
}

func TestTableSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Table{Writer: &buf}).Write(context.Background(), samplePackets()))

	out := buf.String()
	for _, want := range []string{"Sequence", "MSFT", "AAPL", "98"} {
		assert.Contains(t, out, want)
	}
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, []protocol.Packet) error { return f.err }

type countingSink struct{ calls int }

func (c *countingSink) Write(context.Context, []protocol.Packet) error {
	c.calls++
	return nil
}

func TestMultiAttemptsEverySink(t *testing.T) {
	boom := errors.New("boom")
	counter := &countingSink{}

	err := Multi{failingSink{boom}, counter}.Write(context.Background(), samplePackets())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counter.calls)
}
