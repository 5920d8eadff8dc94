// Package wire reads and writes the HTTP/1.x messages the relay passes
// between a client and a vector.
//
// Header fields are kept as received, in order and with their original
// case, so a relayed message differs from the input only where the
// relay rewrites it. Bodies are framed but not decoded: a chunked
// response body is carried as its raw chunks.
package wire
