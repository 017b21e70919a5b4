package pollstream

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultInterval      = time.Hour
	defaultTimeout       = 10 * time.Second
	defaultByteHighWater = 16 * 1024 // bytes
	defaultRecHighWater  = 16        // records
)

// streamConfig holds mutable state during Stream construction.
type streamConfig struct {
	header        http.Header
	query         url.Values
	timeout       time.Duration
	interval      time.Duration
	polling       bool
	pullOnDemand  bool
	objectMode    bool
	highWaterMark int
	logger        *slog.Logger
	handlers      []func(Event)
	clock         clock.Clock
	fetcher       Fetcher
}

func newStreamConfig() *streamConfig {
	return &streamConfig{
		header:       make(http.Header),
		query:        make(url.Values),
		timeout:      defaultTimeout,
		interval:     defaultInterval,
		pullOnDemand: true,
	}
}

// Option is a function that configures a [Stream] during construction.
//
// Options return an error wrapping [ErrInvalidArgument] if validation fails.
// The same options may be applied to many streams (see [NewFactory]); each
// application starts from fresh defaults.
type Option func(*streamConfig) error

// WithInterval sets the automatic polling period and enables automatic
// polling.
//
// Without this option the interval is one hour and automatic polling is
// off unless [WithPolling] turns it on.
//
// Example:
//
//	s, err := pollstream.New(uri, pollstream.WithInterval(30*time.Second))
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *streamConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: interval must be a positive duration, got %s", ErrInvalidArgument, d)
		}
		cfg.interval = d
		cfg.polling = true
		return nil
	}
}

// WithPolling turns automatic polling on or off regardless of whether an
// interval was given.
func WithPolling(enabled bool) Option {
	return func(cfg *streamConfig) error {
		cfg.polling = enabled
		return nil
	}
}

// WithPullOnDemand controls whether a read that finds the buffer empty
// dispatches a request. It is on by default. Turning it off makes the
// stream purely timer-driven: readers wait for automatic polls.
func WithPullOnDemand(enabled bool) Option {
	return func(cfg *streamConfig) error {
		cfg.pullOnDemand = enabled
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every poll.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	s, err := pollstream.New(uri,
//	    pollstream.WithHeaders("Accept", "text/csv", "X-Client", "reports"),
//	)
func WithHeaders(keyValues ...string) Option {
	return func(cfg *streamConfig) error {
		if len(keyValues)%2 != 0 {
			return fmt.Errorf("%w: WithHeaders requires an even number of arguments (key-value pairs)", ErrInvalidArgument)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.header.Add(keyValues[i], keyValues[i+1])
		}
		return nil
	}
}

// WithQuery adds query parameters to every poll, on top of any already
// present in the URI.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithQuery(keyValues ...string) Option {
	return func(cfg *streamConfig) error {
		if len(keyValues)%2 != 0 {
			return fmt.Errorf("%w: WithQuery requires an even number of arguments (key-value pairs)", ErrInvalidArgument)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.query.Add(keyValues[i], keyValues[i+1])
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout. Defaults to 10 seconds.
// A request that times out is reported as a transport failure.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *streamConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidArgument)
		}
		cfg.timeout = d
		return nil
	}
}

// WithObjectMode makes the stream hand out whole [Record] values, counting
// its buffer in records rather than bytes. See [NewObjectMode].
func WithObjectMode() Option {
	return func(cfg *streamConfig) error {
		cfg.objectMode = true
		return nil
	}
}

// WithHighWaterMark sets how much unread data may be buffered before timer
// polls are skipped: bytes in byte mode (default 16 KiB), records in
// object mode (default 16).
//
// Returns an error if n is zero or negative.
func WithHighWaterMark(n int) Option {
	return func(cfg *streamConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: high water mark must be positive", ErrInvalidArgument)
		}
		cfg.highWaterMark = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the stream.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *streamConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidArgument)
		}
		cfg.logger = logger
		return nil
	}
}

// WithEventHandler registers a function called for every [Event].
//
// Handlers run in registration order on the stream's event goroutine, one
// event at a time, and receive every event including the terminal
// EventClose. A slow handler delays later events but never the stream
// itself. Handlers may call back into the stream. Panics are recovered
// and logged.
//
// Nil handlers are silently ignored.
func WithEventHandler(h func(Event)) Option {
	return func(cfg *streamConfig) error {
		if h == nil {
			return nil
		}
		cfg.handlers = append(cfg.handlers, h)
		return nil
	}
}

// WithClock replaces the clock used for the polling timer and timestamps.
func WithClock(c clock.Clock) Option {
	return func(cfg *streamConfig) error {
		if c == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidArgument)
		}
		cfg.clock = c
		return nil
	}
}

// WithFetcher replaces the HTTP client used to perform polls.
func WithFetcher(f Fetcher) Option {
	return func(cfg *streamConfig) error {
		if f == nil {
			return fmt.Errorf("%w: fetcher cannot be nil", ErrInvalidArgument)
		}
		cfg.fetcher = f
		return nil
	}
}
