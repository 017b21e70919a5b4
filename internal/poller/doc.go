// Package poller provides the HTTP and timing machinery behind a pollstream
// Stream.
//
// This package is internal to pollstream. The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits
//   - [Tracker]: request id allocation and the in-flight request set
//   - [Timer]: re-arming interval timer driving automatic polls
//
// Users of the pollstream library should not need to interact with this
// package directly. Configuration is done through the main pollstream package.
package poller
