//go:build linux || darwin || freebsd

package poll

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Read reads once from fd into p, retrying on EINTR. A negative count from the
// kernel is normalised to zero.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Write writes once from p to fd, retrying on EINTR.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Writable reports whether fd can accept a write right now. Error and hangup
// conditions count as writable so the following write surfaces the failure.
func Writable(fd int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		return fds[0].Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0, nil
	}
}

// Readable reports which of fds are readable, waiting at most timeoutMs
// milliseconds (-1 waits forever). Hangups and errors count as readable.
func Readable(fds []int, timeoutMs int) ([]bool, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}
	for {
		_, err := unix.Poll(pfds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	ready := make([]bool, len(fds))
	for i := range pfds {
		ready[i] = pfds[i].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
	}
	return ready, nil
}

// IsWouldBlock reports whether err means the operation would have blocked.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsStream reports whether fd is a SOCK_STREAM socket. ENOTSOCK is reported as false.
func IsStream(fd int) (bool, error) {
	typ, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err == unix.ENOTSOCK {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return typ == unix.SOCK_STREAM, nil
}

// PeerName returns a printable form of the peer address of fd.
func PeerName(fd int) (string, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return "", err
	}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return inetString(addr.Addr[:], addr.Port), nil
	case *unix.SockaddrInet6:
		return inetString(addr.Addr[:], addr.Port), nil
	case *unix.SockaddrUnix:
		if addr.Name == "" {
			return "unix:@", nil
		}
		return "unix:" + addr.Name, nil
	default:
		return "", unix.EAFNOSUPPORT
	}
}
