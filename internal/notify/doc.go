// Package notify provides instance-scoped, ordered event delivery.
//
// Each pollstream Stream owns one [Dispatcher]. The stream publishes events
// while holding its own lock, so the queue order is the order of the state
// transitions that produced them. Delivery happens later on the
// dispatcher's goroutine, which is what lets a stream flip state
// synchronously and report it asynchronously.
//
// Users of the pollstream library should not need to interact with this
// package directly.
package notify
