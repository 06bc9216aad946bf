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
	"net"

	"github.com/srediag/framedsock/api"
	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/socket"
)

const unconnectedDescription = "unconnected socket"

var _ api.Transport = (*Conn)(nil)

// Conn combines a Reader and a Writer over one socket and owns that socket's
// lifecycle. Reads and writes may be interleaved freely; Close is terminal.
type Conn struct {
	sock *socket.Socket
	r    *Reader
	w    *Writer
	log  *logging.Logger
}

// New builds a Conn over sock. The Conn takes ownership of sock and closes it
// on Close. A nil config means DefaultConfig().
func New(sock *socket.Socket, config *Config) (*Conn, error) {
	config, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(sock, config)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(sock, config)
	if err != nil {
		r.Release()
		return nil, err
	}
	return &Conn{
		sock: sock,
		r:    r,
		w:    w,
		log:  logging.New("conn", config.LogOutput),
	}, nil
}

// Wrap is New(socket.FromConn(conn), config). On error conn is left open.
func Wrap(conn net.Conn, config *Config) (*Conn, error) {
	sock, err := socket.FromConn(conn)
	if err != nil {
		return nil, err
	}
	return New(sock, config)
}

// ReadFrame forwards to Reader.ReadFrame.
func (c *Conn) ReadFrame(chunkSize int) ([]byte, bool, error) {
	if c.r == nil {
		return nil, false, ErrClosed
	}
	return c.r.ReadFrame(chunkSize)
}

// SendRaw forwards to Writer.SendRaw.
func (c *Conn) SendRaw(data []byte) error {
	if c.w == nil {
		return ErrClosed
	}
	return c.w.SendRaw(data)
}

// SendFrame forwards to Writer.SendFrame.
func (c *Conn) SendFrame(data []byte) error {
	if c.w == nil {
		return ErrClosed
	}
	return c.w.SendFrame(data)
}

// Reset forwards to Reader.Reset.
func (c *Conn) Reset() {
	if c.r == nil {
		return
	}
	c.r.Reset()
}

// Buffered forwards to Reader.Buffered. A multiplexer should drain a Conn with
// pending bytes before waiting on its descriptor again.
func (c *Conn) Buffered() int {
	if c.r == nil {
		return 0
	}
	return c.r.Buffered()
}

// Fileno returns the socket descriptor so that an external poll loop can wait
// for readability or writability.
func (c *Conn) Fileno() (uintptr, error) {
	if c.r == nil {
		return 0, ErrClosed
	}
	return c.sock.Fd()
}

// Socket returns the underlying socket, e.g. to change its mode or deadlines.
func (c *Conn) Socket() *socket.Socket {
	return c.sock
}

// Close closes the socket and releases the reader and writer. Every later
// call, including a second Close, returns ErrClosed.
func (c *Conn) Close() error {
	if c.r == nil {
		return ErrClosed
	}
	desc := c.String()
	err := c.sock.Close()
	if err != nil {
		c.log.Errorf("close %s failed: %v", desc, err)
	}
	c.r.Release()
	c.w.release()
	c.r, c.w = nil, nil
	c.log.Debugf("%s closed", desc)
	return err
}

// String describes the peer, or reports an unconnected socket when the peer
// address cannot be resolved.
func (c *Conn) String() string {
	peer, err := c.sock.PeerName()
	if err != nil {
		return unconnectedDescription
	}
	return "socket connected to " + peer
}
