//go:build !linux && !darwin && !freebsd

package poll

// Read is not implemented on this platform.
func Read(fd int, p []byte) (int, error) {
	return 0, ErrUnsupported
}

// Write is not implemented on this platform.
func Write(fd int, p []byte) (int, error) {
	return 0, ErrUnsupported
}

// Writable is not implemented on this platform.
func Writable(fd int) (bool, error) {
	return false, ErrUnsupported
}

// Readable is not implemented on this platform.
func Readable(fds []int, timeoutMs int) ([]bool, error) {
	return nil, ErrUnsupported
}

// IsWouldBlock always reports false on this platform.
func IsWouldBlock(err error) bool {
	return false
}

// IsStream is not implemented on this platform.
func IsStream(fd int) (bool, error) {
	return false, ErrUnsupported
}

// PeerName is not implemented on this platform.
func PeerName(fd int) (string, error) {
	return "", ErrUnsupported
}
