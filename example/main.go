package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pollstream"
)

func main() {
	// start mock server (see feed_server.go)
	go StartMockFeedServer(":9999")
	time.Sleep(100 * time.Millisecond)

	s, err := pollstream.New("http://localhost:9999/feed",
		pollstream.WithInterval(2*time.Second),
		pollstream.WithPullOnDemand(false),
		pollstream.WithEventHandler(func(e pollstream.Event) {
			switch e.Kind {
			case pollstream.EventError:
				slog.Warn("poll failed", "error", e.Err)
			case pollstream.EventPending:
				slog.Debug("pending", "count", e.Pending)
			case pollstream.EventClose:
				slog.Info("stream closed")
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create stream", "error", err)
		os.Exit(1)
	}

	// set up graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		s.Destroy(nil)
	}()

	slog.Info("streaming http://localhost:9999/feed every 2s, press Ctrl+C to stop")

	if _, err := io.Copy(os.Stdout, s); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("stream failed", "error", err)
		os.Exit(1)
	}
	<-s.Done()
}
