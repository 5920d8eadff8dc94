// Package server accepts client connections and runs each one through
// the relay state machine.
//
// A connection carries exactly one request. The Handler reads it,
// asks the selection chain for a vector, forwards the request, writes
// the response and closes the connection:
//
//	Accepted -> Parsed -> Selecting -> Selected -> Forwarding -> Relayed -> Closed
//
// with early exits to Rejected (no vector chosen) and Failed (parse or
// backend error). A rejected connection is dropped without a response
// unless a reject status is configured.
package server
