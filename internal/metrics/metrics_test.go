package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/abxclient/internal/feed"
	"github.com/1ureka/abxclient/internal/protocol"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.FrameDecoded(protocol.Packet{Sequence: 1})
	r.FrameDecoded(protocol.Packet{Sequence: 2})
	r.MalformedFrame(protocol.ErrMalformedFrame)
	r.DuplicateFrame(2)
	r.Truncated(10)
	r.StreamEnded(feed.StateTruncated, 4, 2)
	r.ResendSucceeded(3)
	r.ResendFailed(5, errors.New("reset"))
	r.ResendFailed(6, errors.New("reset"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.malformed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.truncations))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.maxSequence))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.gaps))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resends.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.resends.WithLabelValues("failed")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ResendFailed(1, errors.New("closed"))

	path := filepath.Join(t.TempDir(), "abx.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `abx_resends_total{result="failed"} 1`)
	assert.Contains(t, string(data), "abx_bytes_received_total")
}
