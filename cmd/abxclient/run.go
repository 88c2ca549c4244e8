package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"

	"github.com/1ureka/abxclient/internal/config"
	"github.com/1ureka/abxclient/internal/feed"
	"github.com/1ureka/abxclient/internal/metrics"
	"github.com/1ureka/abxclient/internal/sink"
	"github.com/1ureka/abxclient/internal/util"
)

const statsInterval = time.Second

// run executes one session against the configured server and delivers the
// result to every configured sink. Only packet data goes to stdout; the
// summary goes to stderr. The metrics textfile is written even when the
// session fails.
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*feed.Result, error) {
	recorder := metrics.NewRecorder()
	if cfg.MetricsFile != "" {
		defer func() {
			if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
				util.LogWarning("failed to write metrics: %v", err)
			}
		}()
	}

	session := feed.NewSession(cfg.Dialer(), feed.Options{
		Timeout:            cfg.Timeout,
		ReconnectPerResend: cfg.ReconnectPerResend,
		MaxGaps:            cfg.MaxGaps,
		Observer:           recorder,
	})

	util.LogInfo("session %s: connecting to %s over %s", session.ID, cfg.Address(), cfg.Transport)

	statsCtx, stopStats := context.WithCancel(ctx)
	util.StartStatsReporter(statsCtx, statsInterval)
	res, err := session.Run(ctx)
	stopStats()
	if err != nil {
		return nil, fmt.Errorf("session %s failed: %w", session.ID, err)
	}

	sinks, closeSinks := buildSinks(cfg, stdout, stderr)
	defer closeSinks()

	if err := sinks.Write(ctx, res.Packets); err != nil {
		return res, err
	}

	printSummary(stderr, res)
	return res, nil
}

// buildSinks assembles the configured outputs. The table preview moves to
// stderr when the JSON array is written to stdout. The returned func
// releases any client the sinks hold.
func buildSinks(cfg *config.Config, stdout, stderr io.Writer) (sink.Multi, func()) {
	var (
		sinks   sink.Multi
		closers []func() error
	)

	if cfg.Output != "" {
		sinks = append(sinks, &sink.JSONFile{Path: cfg.Output, Stdout: stdout})
	}
	if cfg.Table {
		w := stdout
		if cfg.Output == "-" {
			w = stderr
		}
		sinks = append(sinks, &sink.Table{Writer: w})
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		sinks = append(sinks, &sink.Redis{Client: rdb, Key: cfg.Redis.Key, TTL: cfg.Redis.TTL})
	}

	return sinks, func() {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		if err := errors.Join(errs...); err != nil {
			util.LogDebug("failed to close sink: %v", err)
		}
	}
}

// printSummary renders the session report.
func printSummary(out io.Writer, res *feed.Result) {
	r := res.Report
	data := pterm.TableData{
		{"Session", r.SessionID},
		{"Stream", r.State.String()},
		{"Packets", strconv.Itoa(len(res.Packets))},
		{"Max sequence", strconv.FormatUint(uint64(r.MaxSequence), 10)},
		{"Gaps", strconv.Itoa(len(r.Gaps))},
		{"Recovered", strconv.Itoa(len(r.Recovered))},
		{"Still missing", fmt.Sprint(r.Missing())},
		{"Malformed", strconv.Itoa(r.Malformed)},
		{"Duplicates", strconv.Itoa(r.Duplicates)},
		{"Received", util.FormatBytes(float64(util.Stats.BytesRecv.Load()))},
		{"Connections", strconv.FormatInt(util.Stats.TotalConns.Load(), 10)},
	}

	table, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		util.LogDebug("failed to render summary: %v", err)
		return
	}
	fmt.Fprintln(out, table)

	if len(r.Failed) > 0 {
		util.LogWarning("%d sequences could not be recovered: %v", len(r.Failed), r.Missing())
		return
	}
	util.LogSuccess("received %d packets", len(res.Packets))
}
