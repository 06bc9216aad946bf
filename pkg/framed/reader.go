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

package framed

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"syscall"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/socket"
)

// Reader extracts delimiter-terminated frames from a socket.
//
// The Reader borrows the socket and exclusively owns its receive buffer: two
// Readers over the same byte stream would split frames between them. A Reader
// is not safe for concurrent use.
type Reader struct {
	sock  *socket.Socket
	delim byte
	chunk int
	obs   Observer
	log   *logging.Logger

	//buffer layout: consumed bytes [0, head) | pending bytes [head, len(buf.B))
	buf  *bytebufferpool.ByteBuffer
	head int
}

// NewReader returns a Reader over sock. A nil config means DefaultConfig().
func NewReader(sock *socket.Socket, config *Config) (*Reader, error) {
	config, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}
	if sock == nil {
		return nil, fmt.Errorf("%w: nil socket", socket.ErrNotStreamSocket)
	}
	return &Reader{
		sock:  sock,
		delim: config.Delimiter[0],
		chunk: config.ChunkSize,
		obs:   observerOf(config),
		log:   logging.New("reader", config.LogOutput),
		buf:   bytebufferpool.Get(),
	}, nil
}

// ReadFrame returns the next frame without its delimiter.
//
// A frame already sitting in the buffer is returned without touching the
// socket. Otherwise at most chunkSize bytes are received (the configured
// ChunkSize when chunkSize <= 0, and never more than 16 MiB) and the buffer is
// checked once more.
//
// ok is false with a nil error when no complete frame is available yet: the
// socket would block, the read deadline expired, or the received bytes did not
// contain a delimiter. A zero-byte receive returns ErrConnectionReset. Other
// receive errors are returned unchanged. Back-to-back delimiters yield an
// empty, non-nil frame.
func (r *Reader) ReadFrame(chunkSize int) (frame []byte, ok bool, err error) {
	if r.buf == nil {
		return nil, false, ErrClosed
	}
	if frame, ok = r.pop(); ok {
		return frame, true, nil
	}

	switch {
	case chunkSize <= 0:
		chunkSize = r.chunk
	case chunkSize > maxChunkSize:
		chunkSize = maxChunkSize
	}
	n, err := r.sock.Recv(r.tail(chunkSize))
	switch {
	case errors.Is(err, socket.ErrWouldBlock), errors.Is(err, socket.ErrTimeout):
		r.obs.NoData()
		return nil, false, nil
	case errors.Is(err, syscall.ECONNRESET):
		r.log.Infof("connection reset with %d bytes pending: %v", r.Buffered(), err)
		r.obs.ReadFailed(err)
		return nil, false, err
	case err != nil:
		r.log.Warnf("receive failed: %v", err)
		r.obs.ReadFailed(err)
		return nil, false, err
	case n == 0:
		r.log.Infof("peer closed the connection with %d bytes pending", r.Buffered())
		r.obs.ConnectionReset()
		return nil, false, ErrConnectionReset
	}
	r.buf.B = r.buf.B[:len(r.buf.B)+n]
	r.obs.BytesReceived(n)
	r.log.Tracef("received %d bytes, %d pending", n, r.Buffered())

	if frame, ok = r.pop(); ok {
		return frame, true, nil
	}
	r.obs.NoData()
	return nil, false, nil
}

// Reset discards every buffered byte. Data still queued in the kernel and
// frames already returned are unaffected.
func (r *Reader) Reset() {
	if r.buf == nil {
		return
	}
	if pending := r.Buffered(); pending > 0 {
		r.log.Debugf("reset dropped %d pending bytes", pending)
	}
	r.buf.Reset()
	r.head = 0
}

// Buffered returns the number of received bytes not yet returned as frames.
func (r *Reader) Buffered() int {
	if r.buf == nil {
		return 0
	}
	return len(r.buf.B) - r.head
}

// Release returns the receive buffer to the pool. The Reader must not be used
// afterwards; the socket is left open.
func (r *Reader) Release() {
	if r.buf == nil {
		return
	}
	r.buf.Reset()
	bytebufferpool.Put(r.buf)
	r.buf = nil
	r.head = 0
}

// pop removes the first complete frame and its delimiter from the buffer.
func (r *Reader) pop() ([]byte, bool) {
	pending := r.buf.B[r.head:]
	i := bytes.IndexByte(pending, r.delim)
	if i < 0 {
		return nil, false
	}
	frame := make([]byte, i)
	copy(frame, pending[:i])
	r.head += i + 1
	if r.head == len(r.buf.B) {
		r.buf.Reset()
		r.head = 0
	}
	r.obs.FrameReceived(i)
	return frame, true
}

// tail returns n writable bytes after the pending data, compacting consumed
// bytes first when that avoids a reallocation.
func (r *Reader) tail(n int) []byte {
	b := r.buf.B
	if r.head > 0 && cap(b)-len(b) < n {
		m := copy(b, b[r.head:])
		b = b[:m]
		r.head = 0
	}
	b = slices.Grow(b, n)
	r.buf.B = b
	return b[len(b) : len(b)+n]
}
