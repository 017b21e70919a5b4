package pollstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 5 * time.Second

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventRecorder collects events delivered to a stream's handler.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 1024)}
}

func (r *eventRecorder) handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

// option registers the recorder as an event handler.
func (r *eventRecorder) option() Option {
	return WithEventHandler(r.handle)
}

// waitFor blocks until an event of the given kind arrives and returns it.
// Events of other kinds are skipped.
func (r *eventRecorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-r.ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s event", kind)
			return Event{}
		}
	}
}

// snapshot returns a copy of every event recorded so far.
func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// count returns how many recorded events have the given kind.
func (r *eventRecorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// closeAndCollect destroys s, waits for the terminal event and returns
// everything the handler saw.
func (r *eventRecorder) closeAndCollect(t *testing.T, s *Stream) []Event {
	t.Helper()
	s.Destroy(nil)
	waitDone(t, s)
	return r.snapshot()
}

func waitDone(t *testing.T, s *Stream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for stream to close")
	}
}

// gatedFetcher holds every request until the test releases it.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan RequestOptions
	release chan fetchResult
}

type fetchResult struct {
	resp Response
	err  error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		started: make(chan RequestOptions, 64),
		release: make(chan fetchResult),
	}
}

func (g *gatedFetcher) Fetch(ctx context.Context, opts RequestOptions) (Response, error) {
	g.calls.Add(1)
	g.started <- opts
	r := <-g.release
	return r.resp, r.err
}

// waitStarted blocks until one request has been dispatched.
func (g *gatedFetcher) waitStarted(t *testing.T) RequestOptions {
	t.Helper()
	select {
	case opts := <-g.started:
		return opts
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for request to start")
		return RequestOptions{}
	}
}

// reply completes one in-flight request with a status and body.
func (g *gatedFetcher) reply(t *testing.T, status int, body string) {
	t.Helper()
	g.complete(t, fetchResult{resp: Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}})
}

// fail completes one in-flight request with a transport error.
func (g *gatedFetcher) fail(t *testing.T, err error) {
	t.Helper()
	g.complete(t, fetchResult{err: err})
}

func (g *gatedFetcher) complete(t *testing.T, r fetchResult) {
	t.Helper()
	select {
	case g.release <- r:
	case <-time.After(waitTimeout):
		t.Fatal("timeout completing request: none in flight")
	}
}

// staticFetcher answers every request immediately with the same response.
func staticFetcher(status int, body string) FetcherFunc {
	return func(ctx context.Context, opts RequestOptions) (Response, error) {
		return Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

// eventually polls cond until it holds or the wait times out.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// timerPoll runs one automatic poll whether or not the timer is active.
func (s *Stream) timerPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerPollLocked()
}
