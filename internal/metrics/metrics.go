// Package metrics exports session counters in Prometheus format. The client
// is a batch job, so the registry is written to a node-exporter textfile
// rather than served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/abxclient/internal/feed"
	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/util"
)

const namespace = "abx"

var _ feed.Observer = (*Recorder)(nil)

// Recorder counts session events. It implements feed.Observer.
type Recorder struct {
	reg *prometheus.Registry

	frames      prometheus.Counter
	malformed   prometheus.Counter
	duplicates  prometheus.Counter
	truncations prometheus.Counter
	resends     *prometheus.CounterVec
	maxSequence prometheus.Gauge
	gaps        prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Process traffic
// counters from util.Stats are exposed alongside the session counters.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_decoded_total",
			Help: "Frames decoded successfully during streaming.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_malformed_total",
			Help: "Frames discarded because they failed validation.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_duplicate_total",
			Help: "Frames ignored because their sequence was already received.",
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_truncations_total",
			Help: "Streams that closed part way through a frame.",
		}),
		resends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resends_total",
			Help: "Resend requests by result.",
		}, []string{"result"}),
		maxSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_sequence",
			Help: "Highest sequence number seen while streaming.",
		}),
		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gaps",
			Help: "Sequences missing after streaming.",
		}),
	}

	r.reg.MustRegister(
		r.frames, r.malformed, r.duplicates, r.truncations,
		r.resends, r.maxSequence, r.gaps,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Bytes read from the feed server.",
		}, func() float64 { return float64(util.Stats.BytesRecv.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Request bytes written to the feed server.",
		}, func() float64 { return float64(util.Stats.BytesSent.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_total",
			Help: "Connections opened to the feed server.",
		}, func() float64 { return float64(util.Stats.TotalConns.Load()) }),
	)

	// pre-create both label values so they appear even when zero
	r.resends.WithLabelValues("ok")
	r.resends.WithLabelValues("failed")
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile atomically writes every metric to path in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Recorder) FrameDecoded(protocol.Packet) { r.frames.Inc() }
func (r *Recorder) MalformedFrame(error)         { r.malformed.Inc() }
func (r *Recorder) DuplicateFrame(uint32)        { r.duplicates.Inc() }
func (r *Recorder) Truncated(int)                { r.truncations.Inc() }

func (r *Recorder) StreamEnded(_ feed.StreamState, maxSeq uint32, gaps int) {
	r.maxSequence.Set(float64(maxSeq))
	r.gaps.Set(float64(gaps))
}

func (r *Recorder) ResendSucceeded(uint32)     { r.resends.WithLabelValues("ok").Inc() }
func (r *Recorder) ResendFailed(uint32, error) { r.resends.WithLabelValues("failed").Inc() }
