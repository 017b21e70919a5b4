package pollstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidArgument is wrapped by every configuration error, both those
	// returned from [New] and those reported by [Stream.SetInterval].
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDestroyed is returned by [Stream.Next] once the stream is destroyed.
	ErrDestroyed = errors.New("stream destroyed")

	// ErrObjectMode is returned by [Stream.Read] on an object-mode stream,
	// which hands out whole records through [Stream.Next] instead.
	ErrObjectMode = errors.New("stream is in object mode; use Next")
)

// Messages carried by [RequestError].
const (
	MessageRequestError = "Request error"
	MessageClientError  = "Client error"
)

// EventKind identifies what an [Event] reports.
type EventKind string

const (
	// EventPending reports a change of the pending request count.
	EventPending EventKind = "pending"

	// EventError reports a failed poll, a rejected interval, or the error
	// passed to [Stream.Destroy].
	EventError EventKind = "error"

	// EventStop reports that automatic polling was stopped.
	EventStop EventKind = "stop"

	// EventClose is the terminal event of a destroyed stream.
	EventClose EventKind = "close"
)

// String returns the event name.
func (k EventKind) String() string {
	return string(k)
}

// Event is a notification emitted by a [Stream].
//
// Events of one stream are delivered in the order the underlying state
// transitions happened, on a goroutine owned by the stream.
type Event struct {
	// Kind is the event type.
	Kind EventKind

	// Pending is the new pending count. Set for EventPending only.
	Pending int

	// Err is set for EventError only. Failed polls carry a *RequestError.
	Err error

	// Time is when the event was produced.
	Time time.Time
}

// RequestError describes a poll that completed without data.
//
// Transport failures have Status 500 and the underlying error in Cause.
// Any answer other than 200 OK has the server's status and its body.
type RequestError struct {
	// RequestID identifies the failed request within its stream.
	RequestID uint64

	// Time is when the failure was observed.
	Time time.Time

	// Status is the HTTP status, or 500 for transport failures.
	Status int

	// Message is MessageRequestError or MessageClientError.
	Message string

	// Cause is the transport error. nil for client errors.
	Cause error

	// Body is the response body of a client error.
	Body []byte
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request %d: %s (status %d): %v", e.RequestID, e.Message, e.Status, e.Cause)
	}
	return fmt.Sprintf("request %d: %s (status %d %s)", e.RequestID, e.Message, e.Status, http.StatusText(e.Status))
}

// Unwrap returns the transport error, if any.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Record is one successful poll result.
type Record struct {
	// RequestID identifies the request that produced the record.
	RequestID uint64

	// StatusCode is always 200.
	StatusCode int

	// Header contains the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// ReceivedAt is when the response completed.
	ReceivedAt time.Time

	// Latency is the time taken by the request.
	Latency time.Duration
}
