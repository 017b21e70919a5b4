package pollstream

import (
	"fmt"
	"time"
)

// Interval returns the automatic polling period. It is one hour unless
// configured otherwise.
func (s *Stream) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the automatic polling period.
//
// A non-positive d is rejected: the interval is left unchanged and an
// [EventError] wrapping [ErrInvalidArgument] is emitted. SetInterval does
// not start or restart polling; a running timer uses the new value from
// its next cycle.
func (s *Stream) SetInterval(d time.Duration) {
	if d <= 0 {
		err := fmt.Errorf("%w: interval must be a positive duration, got %s", ErrInvalidArgument, d)
		s.mu.Lock()
		s.publishError(err)
		s.mu.Unlock()
		return
	}
	s.interval.Store(int64(d))
	s.logger.Debug("interval changed", "interval", d.String())
}

// Polling reports whether automatic polling is scheduled.
func (s *Stream) Polling() bool {
	return s.timer.Active()
}

// Stop cancels automatic polling and emits [EventStop]. When no polling is
// scheduled it does nothing. Requests already in flight still complete.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || !s.timer.Stop() {
		return
	}
	s.logger.Info("polling stopped")
	s.events.Publish(Event{Kind: EventStop, Time: s.clock.Now()})
}

// Destroy tears the stream down. Subsequent calls do nothing.
//
// The stream is marked destroyed before Destroy returns: polling stops,
// buffered data is discarded, blocked readers are released and no further
// requests are made. Afterwards, on the stream's event goroutine, an
// [EventError] carrying err is delivered if err is non-nil, followed by
// [EventClose]. Requests already in flight are not cancelled; their
// outcomes are ignored.
func (s *Stream) Destroy(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.timer.Stop()
	s.buffer = nil
	s.buffered = 0
	close(s.gone)
	if f, ok := s.fetcher.(httpFetcher); ok {
		f.client.Close()
	}

	s.logger.Info("stream destroyed", "pending", s.tracker.Pending())

	now := s.clock.Now()
	if err != nil {
		s.events.Publish(Event{Kind: EventError, Err: err, Time: now})
	}
	s.events.Close(Event{Kind: EventClose, Time: now})
}

// Destroyed reports whether [Stream.Destroy] has been called.
func (s *Stream) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Close destroys the stream without an error. It implements [io.Closer].
func (s *Stream) Close() error {
	s.Destroy(nil)
	return nil
}

// onTimer is the timer callback. A fire that races with Stop is dropped:
// once Stop has returned, the timer is inactive under the same lock.
func (s *Stream) onTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timer.Active() {
		return
	}
	s.timerPollLocked()
}

// timerPollLocked runs one automatic poll. Polls are skipped while the
// buffer is at or above the high-water mark. Must be called with s.mu held.
func (s *Stream) timerPollLocked() {
	if s.destroyed {
		return
	}
	if s.buffered >= s.highWaterMark {
		s.logger.Debug("poll skipped, buffer full",
			"buffered", s.buffered,
			"high_water_mark", s.highWaterMark,
		)
		return
	}
	s.dispatch(triggerTimer)
}
