package pollstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/jpalmerr/pollstream/internal/notify"
	"github.com/jpalmerr/pollstream/internal/poller"
)

// Stream is a readable stream over repeated GET requests to one resource.
//
// Data is pulled: [Stream.Next] and [Stream.Read] dispatch a request when
// nothing is buffered and wait for the outcome. With automatic polling
// enabled a timer also dispatches requests every interval while the
// buffer is below its high-water mark. Both kinds of request may be in
// flight at once; [Stream.Pending] counts them.
//
// Successful polls (status 200 exactly) are buffered as records. Every
// other outcome becomes an [EventError] and the stream carries on.
//
// The typical lifecycle is:
//
//	s, err := pollstream.New("https://example.com/feed",
//	    pollstream.WithInterval(time.Minute),
//	    pollstream.WithEventHandler(func(e pollstream.Event) {
//	        if e.Kind == pollstream.EventError {
//	            slog.Warn("poll failed", "error", e.Err)
//	        }
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for {
//	    rec, err := s.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    handle(rec.Body)
//	}
//
// All methods are safe for concurrent use.
type Stream struct {
	id            string
	opts          RequestOptions
	fetcher       Fetcher
	objectMode    bool
	pullOnDemand  bool
	highWaterMark int
	logger        *slog.Logger
	clock         clock.Clock
	events        *notify.Dispatcher[Event]
	timer         *poller.Timer
	interval      atomic.Int64

	mu         sync.Mutex
	tracker    *poller.Tracker
	destroyed  bool
	requesting bool // a demand-triggered request is in flight
	buffer     []Record
	buffered   int
	wake       chan struct{}
	gone       chan struct{}

	readMu  sync.Mutex
	partial []byte
}

// New creates a [Stream] polling uri with the given options.
//
// The interval defaults to one hour and automatic polling is off unless
// [WithInterval] or [WithPolling] is given. The method is always GET.
//
// Returns an error wrapping [ErrInvalidArgument] if uri is not an absolute
// http(s) URL, if any option is nil, or if an option rejects its value.
// No request is made when construction fails.
func New(uri string, opts ...Option) (*Stream, error) {
	target, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	cfg := newStreamConfig()
	for i, opt := range opts {
		if opt == nil {
			return nil, fmt.Errorf("%w: option %d is nil", ErrInvalidArgument, i)
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.highWaterMark == 0 {
		cfg.highWaterMark = defaultByteHighWater
		if cfg.objectMode {
			cfg.highWaterMark = defaultRecHighWater
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	if cfg.fetcher == nil {
		cfg.fetcher = httpFetcher{client: poller.NewClient()}
	}

	id := uuid.NewString()
	logger := cfg.logger.With("stream_id", id)

	s := &Stream{
		id: id,
		opts: RequestOptions{
			URI:     target,
			Method:  http.MethodGet,
			Header:  cfg.header,
			Query:   cfg.query,
			Timeout: cfg.timeout,
		},
		fetcher:       cfg.fetcher,
		objectMode:    cfg.objectMode,
		pullOnDemand:  cfg.pullOnDemand,
		highWaterMark: cfg.highWaterMark,
		logger:        logger,
		clock:         cfg.clock,
		events:        notify.NewDispatcher(cfg.handlers, logger),
		wake:          make(chan struct{}),
		gone:          make(chan struct{}),
	}
	s.interval.Store(int64(cfg.interval))
	s.tracker = poller.NewTracker(s.publishPending)
	s.timer = poller.NewTimer(cfg.clock, s.Interval, s.onTimer)

	if cfg.polling {
		s.timer.Start()
	}

	logger.Debug("stream created",
		"uri", target,
		"interval", cfg.interval.String(),
		"polling", cfg.polling,
		"object_mode", cfg.objectMode,
	)
	return s, nil
}

// NewObjectMode creates a [Stream] in object mode. It is [New] with
// [WithObjectMode] appended to opts.
func NewObjectMode(uri string, opts ...Option) (*Stream, error) {
	return New(uri, append(append([]Option(nil), opts...), WithObjectMode())...)
}

// Next returns the next buffered record, pulling from the remote resource
// if nothing is buffered.
//
// Next blocks until a record is available, ctx is done, or the stream is
// destroyed, in which case it returns [ErrDestroyed]. A failed poll does
// not end the wait: the failure is reported as an [EventError] and the
// record comes from a later poll. Calling Next again after ctx expires
// issues a fresh demand. With [WithPullOnDemand](false) Next only waits
// for automatic polls.
func (s *Stream) Next(ctx context.Context) (Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return Record{}, ErrDestroyed
		}
		if len(s.buffer) > 0 {
			rec := s.shift()
			s.mu.Unlock()
			return rec, nil
		}
		if s.pullOnDemand && !s.requesting {
			s.dispatch(triggerDemand)
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-s.gone:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
}

// Read implements [io.Reader] over the concatenated bodies of successful
// polls, in the order their requests completed.
//
// Read returns [io.EOF] once the stream is destroyed and [ErrObjectMode]
// on object-mode streams.
//
// Read has no deadline and, like [Stream.Next], waits through failed
// polls. On a stream without automatic polling a failed demand therefore
// leaves Read blocked until Destroy; use Next with a context to issue a
// fresh demand, or enable [WithInterval] so a later poll recovers.
func (s *Stream) Read(p []byte) (int, error) {
	if s.objectMode {
		return 0, ErrObjectMode
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	for len(s.partial) == 0 {
		rec, err := s.Next(context.Background())
		if errors.Is(err, ErrDestroyed) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		s.partial = rec.Body
	}

	n := copy(p, s.partial)
	s.partial = s.partial[n:]
	return n, nil
}

// Pending returns the number of requests dispatched but not yet completed.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Pending()
}

// Buffered returns the amount of unread data: bytes in byte mode, records
// in object mode.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

// ID returns the stream's unique identifier, used in its log lines.
func (s *Stream) ID() string {
	return s.id
}

// ObjectMode reports whether the stream was created in object mode.
func (s *Stream) ObjectMode() bool {
	return s.objectMode
}

// Options returns a copy of the stream's request options.
func (s *Stream) Options() RequestOptions {
	return s.opts.clone()
}

// Subscribe returns a channel receiving the stream's events from now on.
//
// The channel is buffered; when it is full, events are dropped for this
// subscriber. It is closed after [EventClose]. Use [WithEventHandler] when
// every event must be observed.
func (s *Stream) Subscribe() <-chan Event {
	return s.events.Subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Stream) Unsubscribe(ch <-chan Event) {
	s.events.Unsubscribe(ch)
}

// Done is closed after [EventClose] has been delivered to every handler.
func (s *Stream) Done() <-chan struct{} {
	return s.events.Done()
}

// shift pops the oldest record. Must be called with s.mu held.
func (s *Stream) shift() Record {
	rec := s.buffer[0]
	s.buffer[0] = Record{}
	s.buffer = s.buffer[1:]
	s.buffered -= s.sizeOf(rec)
	return rec
}

// push appends a record and wakes blocked readers. Must be called with s.mu held.
func (s *Stream) push(rec Record) {
	s.buffer = append(s.buffer, rec)
	s.buffered += s.sizeOf(rec)
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *Stream) sizeOf(rec Record) int {
	if s.objectMode {
		return 1
	}
	return len(rec.Body)
}

// publishPending is the tracker's change callback; it runs with s.mu held.
func (s *Stream) publishPending(n int) {
	if s.destroyed {
		return
	}
	s.events.Publish(Event{Kind: EventPending, Pending: n, Time: s.clock.Now()})
}

// publishError must be called with s.mu held.
func (s *Stream) publishError(err error) {
	if s.destroyed {
		return
	}
	s.events.Publish(Event{Kind: EventError, Err: err, Time: s.clock.Now()})
}
