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
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/socket"
)

// Writer sends buffers over a socket, waiting for writability first so that a
// non-blocking socket behaves like a blocking one on send. It holds no state
// besides the socket and delimiter.
type Writer struct {
	sock  *socket.Socket
	delim byte
	obs   Observer
	log   *logging.Logger
}

// NewWriter returns a Writer over sock. A nil config means DefaultConfig().
func NewWriter(sock *socket.Socket, config *Config) (*Writer, error) {
	config, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}
	if sock == nil {
		return nil, fmt.Errorf("%w: nil socket", socket.ErrNotStreamSocket)
	}
	return &Writer{
		sock:  sock,
		delim: config.Delimiter[0],
		obs:   observerOf(config),
		log:   logging.New("writer", config.LogOutput),
	}, nil
}

// SendRaw blocks until the socket is writable, then sends all of data. No
// delimiter is appended. The only bound on the wait is the socket's write
// deadline.
func (w *Writer) SendRaw(data []byte) error {
	return w.send(data, false)
}

// SendFrame sends data followed by the delimiter. data must not contain the
// delimiter; the receiver would split it into several frames.
func (w *Writer) SendFrame(data []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = append(buf.B, data...)
	buf.B = append(buf.B, w.delim)
	return w.send(buf.B, true)
}

func (w *Writer) send(data []byte, frame bool) (err error) {
	if w.sock == nil {
		return ErrClosed
	}
	start := time.Now()
	defer func() {
		w.obs.Sent(len(data), frame, time.Since(start), err)
	}()
	if err = w.sock.WaitWritable(); err != nil {
		w.log.Warnf("wait for writable failed: %v", err)
		return err
	}
	if err = w.sock.SendAll(data); err != nil {
		w.log.Warnf("send of %d bytes failed: %v", len(data), err)
		return err
	}
	return nil
}

func (w *Writer) release() {
	w.sock = nil
}
