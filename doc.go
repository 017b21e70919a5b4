// Package pollstream turns a remote HTTP resource into a readable stream
// by polling it with GET requests.
//
// A [Stream] pulls: reading from an empty stream dispatches a request and
// waits for the answer. Optionally a timer polls the resource every
// interval as well, pausing while unread data sits above the high-water
// mark. Successful responses (status 200 exactly) become the stream's data;
// every other outcome is reported as an event and the stream keeps going.
//
// # Quick Start
//
//	s, err := pollstream.New("https://example.com/feed",
//	    pollstream.WithInterval(time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	io.Copy(os.Stdout, s) // concatenated response bodies until Destroy
//
// The interval matters here: a failed poll is reported as an [EventError]
// and never retried, so a purely on-demand Read would wait for good after
// one failure. The timer keeps polling and the next success resumes the
// copy.
//
// # Configuration
//
// Streams use the functional options pattern:
//
//	s, err := pollstream.New("https://example.com/prices",
//	    pollstream.WithInterval(30*time.Second),
//	    pollstream.WithHeaders("Authorization", "Bearer token"),
//	    pollstream.WithQuery("format", "csv"),
//	    pollstream.WithTimeout(5*time.Second),
//	    pollstream.WithLogger(logger),
//	)
//
// [NewFactory] captures a URI and options once and returns a constructor
// for independent streams built from them.
//
// # Modes
//
// In byte mode [Stream.Read] yields the concatenated response bodies.
// In object mode ([NewObjectMode] or [WithObjectMode]) [Stream.Next] yields
// one [Record] per successful poll, carrying its request id, headers and
// latency; Next works in byte mode too.
//
// # Events
//
// A stream reports what happens to it through [Event] values delivered in
// order to handlers registered with [WithEventHandler] and to channels
// from [Stream.Subscribe]:
//
//   - [EventPending]: the number of in-flight requests changed
//   - [EventError]: a poll failed (see [RequestError]), an interval was
//     rejected, or the stream was destroyed with an error
//   - [EventStop]: automatic polling was stopped
//   - [EventClose]: the stream was destroyed; always the last event
//
// # Lifecycle
//
// [Stream.Stop] cancels automatic polling while leaving the stream
// readable. [Stream.Destroy] ends the stream: it takes effect immediately,
// requests still in flight are left to finish and their outcomes are
// ignored.
//
// # Architecture
//
// The internal packages are not part of the public API and may change
// without notice:
//
//   - internal/poller: HTTP client, request tracker and polling timer
//   - internal/notify: ordered event delivery to handlers and subscribers
package pollstream
