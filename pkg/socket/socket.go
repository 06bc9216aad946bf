/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package socket adapts an already-connected stream socket for frame-level I/O.
//
// The caller creates, connects and configures the connection. A Socket only
// borrows the descriptor through syscall.RawConn: it reads without blocking
// when the caller asked for non-blocking mode, honours the connection's
// deadlines, and parks writers until the descriptor becomes writable.
package socket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/srediag/framedsock/internal/poll"
)

var (
	// ErrNotStreamSocket is returned when a handle is not a connected stream socket.
	ErrNotStreamSocket = errors.New("socket: handle is not a stream socket")
	// ErrNilConn is returned when a nil connection is supplied.
	ErrNilConn = errors.New("socket: nil connection")
	// ErrWouldBlock is returned by Recv in non-blocking mode when nothing is queued.
	ErrWouldBlock = errors.New("socket: operation would block")
	// ErrTimeout is returned by Recv when the read deadline expired.
	ErrTimeout = errors.New("socket: i/o timeout")
	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("socket: use of closed socket")
)

// Socket is a borrowed view of a connected stream socket.
type Socket struct {
	conn        net.Conn
	raw         syscall.RawConn
	nonBlocking atomic.Bool
	closed      atomic.Bool
}

// FromConn wraps conn. conn must expose its descriptor (syscall.Conn) and the
// descriptor must be a SOCK_STREAM socket, as *net.TCPConn and stream
// *net.UnixConn are.
func FromConn(conn net.Conn) (*Socket, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no descriptor", ErrNotStreamSocket, conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStreamSocket, err)
	}
	var (
		stream bool
		opErr  error
	)
	if err := raw.Control(func(fd uintptr) {
		stream, opErr = poll.IsStream(int(fd))
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStreamSocket, err)
	}
	if opErr != nil {
		return nil, os.NewSyscallError("getsockopt", opErr)
	}
	if !stream {
		return nil, fmt.Errorf("%w: %s", ErrNotStreamSocket, conn.LocalAddr().Network())
	}
	return &Socket{conn: conn, raw: raw}, nil
}

// FromFile wraps an inherited descriptor. The descriptor is duplicated, so f
// may be closed by the caller once FromFile returns.
func FromFile(f *os.File) (*Socket, error) {
	if f == nil {
		return nil, ErrNilConn
	}
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStreamSocket, err)
	}
	s, err := FromConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Conn returns the wrapped connection.
func (s *Socket) Conn() net.Conn {
	return s.conn
}

// SetBlocking selects how Recv behaves when nothing is queued: blocking mode
// waits for data (bounded by the read deadline), non-blocking mode returns
// ErrWouldBlock at once. Sockets start in blocking mode.
func (s *Socket) SetBlocking(blocking bool) {
	s.nonBlocking.Store(!blocking)
}

// Blocking reports the current mode.
func (s *Socket) Blocking() bool {
	return !s.nonBlocking.Load()
}

// SetTimeout arms both deadlines d from now. A zero d clears them.
func (s *Socket) SetTimeout(d time.Duration) error {
	if d == 0 {
		return s.conn.SetDeadline(time.Time{})
	}
	return s.conn.SetDeadline(time.Now().Add(d))
}

// SetReadDeadline forwards to the wrapped connection.
func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetWriteDeadline forwards to the wrapped connection.
func (s *Socket) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

// Recv reads at most len(p) bytes with a single receive. A return of (0, nil)
// means the peer shut down its side of the connection.
func (s *Socket) Recv(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	nonBlocking := s.nonBlocking.Load()
	var (
		n     int
		opErr error
	)
	err := s.raw.Read(func(fd uintptr) bool {
		n, opErr = poll.Read(int(fd), p)
		if poll.IsWouldBlock(opErr) {
			return nonBlocking
		}
		return true
	})
	if err != nil {
		return 0, s.pollError(err)
	}
	if opErr != nil {
		if poll.IsWouldBlock(opErr) {
			return 0, ErrWouldBlock
		}
		return 0, os.NewSyscallError("read", opErr)
	}
	return n, nil
}

// WaitWritable parks the caller until the socket can accept data. There is no
// timeout beyond the connection's write deadline.
func (s *Socket) WaitWritable() error {
	if s.closed.Load() {
		return ErrClosed
	}
	var opErr error
	err := s.raw.Write(func(fd uintptr) bool {
		var ready bool
		ready, opErr = poll.Writable(int(fd))
		return ready || opErr != nil
	})
	if err != nil {
		return s.pollError(err)
	}
	if opErr != nil {
		return os.NewSyscallError("poll", opErr)
	}
	return nil
}

// SendAll writes all of p, retrying short writes and waiting out EAGAIN. It
// returns only once every byte has been handed to the kernel or on error.
func (s *Socket) SendAll(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var opErr error
	err := s.raw.Write(func(fd uintptr) bool {
		for len(p) > 0 {
			n, err := poll.Write(int(fd), p)
			p = p[n:]
			if err != nil {
				if poll.IsWouldBlock(err) {
					return false
				}
				opErr = err
				return true
			}
		}
		return true
	})
	if err != nil {
		return s.pollError(err)
	}
	if opErr != nil {
		return os.NewSyscallError("write", opErr)
	}
	return nil
}

// Fd returns the descriptor for use with an external multiplexer. The value is
// only valid until Close.
func (s *Socket) Fd() (uintptr, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var out uintptr
	if err := s.raw.Control(func(fd uintptr) {
		out = fd
	}); err != nil {
		return 0, s.pollError(err)
	}
	return out, nil
}

// PeerName returns the peer address as reported by getpeername.
func (s *Socket) PeerName() (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	var (
		name  string
		opErr error
	)
	if err := s.raw.Control(func(fd uintptr) {
		name, opErr = poll.PeerName(int(fd))
	}); err != nil {
		return "", s.pollError(err)
	}
	if opErr != nil {
		return "", os.NewSyscallError("getpeername", opErr)
	}
	return name, nil
}

// Close closes the wrapped connection. Calling Close twice returns ErrClosed.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.conn.Close()
}

func (s *Socket) pollError(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	default:
		return err
	}
}
