// Package errs defines the sentinel error kinds surfaced by the transport
// and handshake layers, per spec.md §7.
package errs

import "errors"

// Kind is a sentinel identifying a class of core failure. Wrap it with
// fmt.Errorf("...: %w", errs.SecurityError) so callers can errors.Is/As
// against the kind without losing the specific message.
type Kind error

var (
	// SecurityError: nonce mismatch, invalid new-nonce hash, dh_gen_fail
	// exhausted, DH params out of range, no valid RSA fingerprint.
	SecurityError Kind = errors.New("security error")

	// ProtocolMismatch: an unknown constructor id where a specific id
	// was required.
	ProtocolMismatch Kind = errors.New("protocol mismatch")

	// RetryRequested: server returned dh_gen_retry.
	RetryRequested Kind = errors.New("retry requested")

	// InvalidChecksum: full-mode CRC mismatch.
	InvalidChecksum Kind = errors.New("invalid checksum")

	// MalformedFrame: short read, or a length field implying a negative
	// or absurd read size.
	MalformedFrame Kind = errors.New("malformed frame")

	// ConnectionClosed: the underlying socket was closed mid-operation.
	ConnectionClosed Kind = errors.New("connection closed")

	// Timeout: the socket read deadline expired.
	Timeout Kind = errors.New("timeout")
)
