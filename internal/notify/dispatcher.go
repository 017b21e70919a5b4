package notify

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the channel capacity handed out by Subscribe.
const subscriberBuffer = 100

// Dispatcher delivers events to handlers and channel subscribers in the
// order they were published, on a goroutine of its own.
//
// Publish never blocks the caller: events are appended to an unbounded
// queue. Handlers receive every event. Subscriber channels are buffered and
// sends are non-blocking; a subscriber whose buffer is full misses the
// event rather than stalling delivery for everyone else.
//
// Closing the dispatcher publishes one last event, delivers everything
// still queued, closes every subscriber channel and then closes Done.
type Dispatcher[E any] struct {
	handlers []func(E)
	logger   *slog.Logger

	mu      sync.Mutex
	queue   []E
	closing bool
	wake    chan struct{}

	subMu       sync.RWMutex
	subscribers map[chan E]struct{}
	finished    bool

	done chan struct{}
}

// NewDispatcher starts a [Dispatcher] delivering to handlers. Handler panics
// are recovered and logged to logger with a correlation id.
func NewDispatcher[E any](handlers []func(E), logger *slog.Logger) *Dispatcher[E] {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher[E]{
		handlers:    append([]func(E){}, handlers...),
		logger:      logger,
		wake:        make(chan struct{}, 1),
		subscribers: make(map[chan E]struct{}),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish queues e for delivery. It reports false if the dispatcher has
// already been closed, in which case e is dropped.
func (d *Dispatcher[E]) Publish(e E) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return false
	}
	d.queue = append(d.queue, e)
	d.signal()
	return true
}

// Close queues the terminal event last. Subsequent Publish and Close calls
// are dropped.
func (d *Dispatcher[E]) Close(last E) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return false
	}
	d.queue = append(d.queue, last)
	d.closing = true
	d.signal()
	return true
}

// Done is closed once the terminal event has been delivered.
func (d *Dispatcher[E]) Done() <-chan struct{} {
	return d.done
}

// Subscribe returns a channel receiving every event delivered from now on.
//
// The channel is closed after the terminal event, or immediately if the
// dispatcher has already finished. Caller should call [Dispatcher.Unsubscribe]
// when it stops reading before the terminal event.
func (d *Dispatcher[E]) Subscribe() <-chan E {
	ch := make(chan E, subscriberBuffer)
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.finished {
		close(ch)
		return ch
	}
	d.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (d *Dispatcher[E]) Unsubscribe(ch <-chan E) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for subCh := range d.subscribers {
		if subCh == ch {
			delete(d.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// signal must be called with d.mu held.
func (d *Dispatcher[E]) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher[E]) run() {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closing := d.closing
		d.mu.Unlock()

		for _, e := range batch {
			d.deliver(e)
		}

		if closing {
			// Close appends under the same lock that set closing, so the
			// batch taken above already held the terminal event.
			d.finish()
			return
		}
		<-d.wake
	}
}

func (d *Dispatcher[E]) deliver(e E) {
	for _, h := range d.handlers {
		d.invokeSafe(h, e)
	}

	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for ch := range d.subscribers {
		select {
		case ch <- e:
		default:
			// subscriber buffer full, drop event
		}
	}
}

func (d *Dispatcher[E]) finish() {
	d.subMu.Lock()
	for ch := range d.subscribers {
		close(ch)
	}
	d.subscribers = make(map[chan E]struct{})
	d.finished = true
	d.subMu.Unlock()
	close(d.done)
}

// invokeSafe calls an event handler with panic recovery.
// Panics are logged with a correlation id but do not propagate.
func (d *Dispatcher[E]) invokeSafe(h func(E), e E) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(e)
}
