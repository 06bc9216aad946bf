// Package poll contains the platform-specific descriptor primitives used by the socket layer.
//
// Every function operates on a raw descriptor that the caller obtained through
// syscall.RawConn, so the Go runtime keeps ownership of the descriptor lifecycle.
package poll

import "errors"

// ErrUnsupported is returned on platforms without a descriptor implementation.
var ErrUnsupported = errors.ErrUnsupported

// Function implementations are provided in platform-specific files (poll_unix.go, poll_other.go).
