// Package api is the HTTP client for the dashboard server.
//
// It wraps the state endpoints (GET /state, POST /state, the /state/stream
// event stream), the fire-and-refresh action endpoints, multipart uploads,
// and the ranged media probe the headless player uses. Every request carries
// an X-Client-ID header so server logs can be correlated with this process.
//
// # Errors
//
// Non-2xx responses decode the server's {"error": "..."} body into *Error.
// A 413 additionally matches ErrTooLarge. Transport failures (refused
// connections, resets, timeouts) are recognised by IsUnavailable so callers
// can treat them as transient.
//
// # Streaming
//
// StreamState reads the text/event-stream response with a small line parser.
// It reports the open transition through a callback and hands every complete
// event to the caller; it returns when the connection ends for any reason.
package api
