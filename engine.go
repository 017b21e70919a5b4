package pollstream

import (
	"context"
	"net/http"
	"time"
)

// trigger records what caused a poll.
type trigger int

const (
	triggerDemand trigger = iota
	triggerTimer
)

func (t trigger) String() string {
	if t == triggerTimer {
		return "timer"
	}
	return "demand"
}

// dispatch registers a fresh request id and starts the request in the
// background. Must be called with s.mu held and the stream not destroyed.
func (s *Stream) dispatch(t trigger) {
	id := s.tracker.NextID()
	s.tracker.Register(id)
	if t == triggerDemand {
		s.requesting = true
	}

	s.logger.Debug("poll dispatched", "request_id", id, "trigger", t.String())

	opts := s.opts.clone()
	start := s.clock.Now()
	go func() {
		resp, err := s.fetcher.Fetch(context.Background(), opts)
		s.complete(id, t, resp, err, s.clock.Since(start))
	}()
}

// complete routes the outcome of request id. The request is deregistered
// before its outcome is published, so the pending event precedes it.
func (s *Stream) complete(id uint64, t trigger, resp Response, err error, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Deregister(id)
	if t == triggerDemand {
		s.requesting = false
	}

	if s.destroyed {
		s.logger.Debug("poll completed after destroy", "request_id", id)
		return
	}

	now := s.clock.Now()
	logAttrs := []any{
		"request_id", id,
		"trigger", t.String(),
		"latency_ms", latency.Milliseconds(),
	}

	switch {
	case err != nil:
		s.logger.Warn("poll failed", append(logAttrs, "error", err.Error())...)
		s.publishError(&RequestError{
			RequestID: id,
			Time:      now,
			Status:    http.StatusInternalServerError,
			Message:   MessageRequestError,
			Cause:     err,
		})

	case resp.StatusCode != http.StatusOK:
		s.logger.Warn("poll rejected", append(logAttrs, "status", resp.StatusCode)...)
		s.publishError(&RequestError{
			RequestID: id,
			Time:      now,
			Status:    resp.StatusCode,
			Message:   MessageClientError,
			Body:      resp.Body,
		})

	default:
		s.logger.Debug("poll completed", append(logAttrs, "bytes", len(resp.Body))...)
		s.push(Record{
			RequestID:  id,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       resp.Body,
			ReceivedAt: now,
			Latency:    latency,
		})
	}
}
