// Package api defines public API contracts for framedsock.
package api

// Transport is a delimiter-framed connection. *framed.Conn implements it.
type Transport interface {
	// ReadFrame returns the next frame; ok is false when none is complete yet.
	ReadFrame(chunkSize int) (frame []byte, ok bool, err error)
	// SendRaw sends data as is.
	SendRaw(data []byte) error
	// SendFrame sends data followed by the delimiter.
	SendFrame(data []byte) error
	// Reset drops buffered, unreturned bytes.
	Reset()
	// Buffered returns the number of buffered, unreturned bytes.
	Buffered() int
	// Fileno returns the readiness descriptor for external multiplexers.
	Fileno() (uintptr, error)
	// Close ends the connection. It must be called exactly once.
	Close() error
	String() string
}
