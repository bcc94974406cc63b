// Package syncchan keeps the local view supplied with the newest server
// state.
//
// A Channel is a small state machine (disconnected, connecting, streaming,
// polling). It prefers the /state/stream push stream and falls back to a
// periodic safety-net fetch that only runs while the stream is not open. A
// failed stream is retried after a fixed delay with at most one reconnect
// timer pending; at most one direct fetch is in flight, each bounded by a
// timeout. Consecutive fetch failures escalate to a "state may be stuck"
// notice. The channel never gives up on its own; only Stop ends it.
//
// All methods must be called on the event loop that was passed to New.
package syncchan
