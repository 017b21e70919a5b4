package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pollstream"
	"github.com/jpalmerr/pollstream/config"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// tailCmd polls streams and copies their output to stdout.
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Poll streams and print their output",
	Long: `Poll one or more HTTP resources and write each successful response to stdout.

Streams come from a config file (-c) or a single --uri. Each stream pulls a
new response as soon as the previous one has been written; streams with an
interval also poll on that schedule. A failed poll is logged and the stream
pulls again after --error-delay.

In byte mode bodies are written as-is (prefixed with "[name] " when more
than one stream is configured). Object-mode streams print one JSON record
per line.

The command runs until interrupted (Ctrl+C), until SIGTERM, or until every
stream has produced --count records.

Example:
  pollstream tail -c streams.yaml
  pollstream tail --uri https://example.com/feed --interval 30s --count 10`,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().StringP("config", "c", "", "path to config file")
	tailCmd.Flags().String("uri", "", "resource to poll (instead of a config file)")
	tailCmd.Flags().Duration("interval", 0, "automatic polling interval for --uri")
	tailCmd.Flags().Duration("timeout", 0, "per-request timeout for --uri")
	tailCmd.Flags().Bool("object", false, "print JSON records for --uri")
	tailCmd.Flags().Duration("error-delay", time.Second, "wait after a failed poll before pulling again")
	tailCmd.Flags().Int("count", 0, "stop each stream after this many records (0 = unlimited)")
	tailCmd.Flags().BoolP("verbose", "v", false, "log debug events")
	tailCmd.MarkFlagsMutuallyExclusive("config", "uri")
	tailCmd.MarkFlagsOneRequired("config", "uri")
}

func runTail(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	count, _ := cmd.Flags().GetInt("count")
	errorDelay, _ := cmd.Flags().GetDuration("error-delay")
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	cfg, err := tailConfig(cmd)
	if err != nil {
		return err
	}
	for _, sc := range cfg.Streams {
		if sc.Method != "" && !strings.EqualFold(sc.Method, http.MethodGet) {
			logger.Warn("method ignored, streams always use GET", "stream", sc.Name, "method", sc.Method)
		}
	}

	sources := config.BuildSources(cfg, func(name string) []pollstream.Option {
		return []pollstream.Option{
			pollstream.WithLogger(logger.With("stream", name)),
			pollstream.WithEventHandler(eventLogger(logger, name)),
		}
	})

	streams := make([]*pollstream.Stream, 0, len(sources))
	destroyAll := func() {
		for _, s := range streams {
			s.Destroy(nil)
		}
	}
	for _, src := range sources {
		s, err := src.New()
		if err != nil {
			destroyAll()
			return fmt.Errorf("stream %s: %w", src.Name, err)
		}
		streams = append(streams, s)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	prefix := len(streams) > 1

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range streams {
		name := sources[i].Name
		g.Go(func() error {
			return pump(gctx, name, s, out, prefix, count, errorDelay)
		})
	}
	err = g.Wait()

	destroyAll()
	waitClosed(streams, logger)

	if err != nil {
		return err
	}
	logger.Info("tail finished")
	return nil
}

// tailConfig builds the stream configuration from either --config or --uri.
func tailConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	uri, _ := cmd.Flags().GetString("uri")
	sc := config.StreamConfig{Name: "stream", URI: uri}
	if cmd.Flags().Changed("interval") {
		interval, _ := cmd.Flags().GetDuration("interval")
		d := config.Duration(interval)
		sc.Interval = &d
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	sc.Timeout = config.Duration(timeout)
	sc.ObjectMode, _ = cmd.Flags().GetBool("object")

	return &config.Config{Streams: []config.StreamConfig{sc}}, nil
}

// pump copies records from s to out until ctx is done, the stream is
// destroyed or limit records have been written.
func pump(ctx context.Context, name string, s *pollstream.Stream, out io.Writer, prefix bool, limit int, errorDelay time.Duration) error {
	events := s.Subscribe()
	defer s.Unsubscribe(events)

	for n := 0; limit == 0 || n < limit; n++ {
		rec, err := nextRecord(ctx, s, events, errorDelay)
		if errors.Is(err, pollstream.ErrDestroyed) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream %s: %w", name, err)
		}
		if err := writeRecord(out, name, s.ObjectMode(), prefix, rec); err != nil {
			return fmt.Errorf("stream %s: write: %w", name, err)
		}
	}
	return nil
}

// nextRecord waits for the next record of s. Next keeps waiting through
// failed polls and the stream never retries, so an error event on events
// ends the attempt; after errorDelay a fresh Next issues a new demand.
func nextRecord(ctx context.Context, s *pollstream.Stream, events <-chan pollstream.Event, errorDelay time.Duration) (pollstream.Record, error) {
	for {
		attempt, cancel := context.WithCancel(ctx)
		var failed atomic.Bool
		watched := make(chan struct{})
		go func() {
			defer close(watched)
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					if e.Kind == pollstream.EventError {
						failed.Store(true)
						cancel()
						return
					}
				case <-attempt.Done():
					return
				}
			}
		}()

		rec, err := s.Next(attempt)
		cancel()
		<-watched
		if err == nil || ctx.Err() != nil || !failed.Load() {
			return rec, err
		}

		select {
		case <-ctx.Done():
			return pollstream.Record{}, ctx.Err()
		case <-time.After(errorDelay):
		}
	}
}

// jsonRecord is the line format of object-mode output.
type jsonRecord struct {
	Stream     string    `json:"stream"`
	RequestID  uint64    `json:"request_id"`
	ReceivedAt time.Time `json:"received_at"`
	LatencyMs  int64     `json:"latency_ms"`
	Body       string    `json:"body"`
}

func writeRecord(out io.Writer, name string, objectMode, prefix bool, rec pollstream.Record) error {
	if objectMode {
		line, err := json.Marshal(jsonRecord{
			Stream:     name,
			RequestID:  rec.RequestID,
			ReceivedAt: rec.ReceivedAt,
			LatencyMs:  rec.Latency.Milliseconds(),
			Body:       string(rec.Body),
		})
		if err != nil {
			return err
		}
		_, err = out.Write(append(line, '\n'))
		return err
	}

	if !prefix {
		_, err := out.Write(rec.Body)
		return err
	}
	body := strings.TrimRight(string(rec.Body), "\n")
	_, err := fmt.Fprintf(out, "[%s] %s\n", name, body)
	return err
}

// eventLogger returns an event handler that logs a stream's events.
func eventLogger(logger *slog.Logger, name string) func(pollstream.Event) {
	return func(e pollstream.Event) {
		switch e.Kind {
		case pollstream.EventError:
			var reqErr *pollstream.RequestError
			if errors.As(e.Err, &reqErr) {
				logger.Warn("poll failed",
					"stream", name,
					"request_id", reqErr.RequestID,
					"status", reqErr.Status,
					"message", reqErr.Message,
					"error", e.Err.Error(),
				)
				return
			}
			logger.Error("stream error", "stream", name, "error", e.Err.Error())
		case pollstream.EventStop:
			logger.Info("polling stopped", "stream", name)
		case pollstream.EventClose:
			logger.Info("stream closed", "stream", name)
		case pollstream.EventPending:
			logger.Debug("pending changed", "stream", name, "pending", e.Pending)
		}
	}
}

// waitClosed waits for every stream's close event, up to shutdownTimeout.
func waitClosed(streams []*pollstream.Stream, logger *slog.Logger) {
	deadline := time.After(shutdownTimeout)
	for _, s := range streams {
		select {
		case <-s.Done():
		case <-deadline:
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return
		}
	}
}

// lockedWriter serializes writes from concurrent stream pumps.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
