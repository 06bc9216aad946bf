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
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/framedsock/internal/sockettest"
)

type countingObserver struct {
	mu         sync.Mutex
	frames     int
	received   int
	noData     int
	resets     int
	readErrors int
	sent       int
	sentFrames int
	sendErrors int
}

func (o *countingObserver) FrameReceived(int) { o.mu.Lock(); o.frames++; o.mu.Unlock() }
func (o *countingObserver) BytesReceived(n int) { o.mu.Lock(); o.received += n; o.mu.Unlock() }
func (o *countingObserver) NoData() { o.mu.Lock(); o.noData++; o.mu.Unlock() }
func (o *countingObserver) ConnectionReset() { o.mu.Lock(); o.resets++; o.mu.Unlock() }
func (o *countingObserver) ReadFailed(error) { o.mu.Lock(); o.readErrors++; o.mu.Unlock() }

func (o *countingObserver) Sent(n int, frame bool, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.sendErrors++
		return
	}
	o.sent += n
	if frame {
		o.sentFrames++
	}
}

type ConnTestSuite struct {
	suite.Suite
}

func (s *ConnTestSuite) TestSendFrameWireFormat() {
	c, peer := testPair(s.T(), testConf())
	defer c.Close() //nolint:errcheck // test cleanup

	s.Require().NoError(c.SendFrame([]byte("hello")))
	buf := make([]byte, 16)
	n, err := io.ReadAtLeast(peer, buf, len("hello\n"))
	s.Require().NoError(err)
	s.Equal([]byte("hello\n"), buf[:n])
}

func (s *ConnTestSuite) TestSendRawHasNoDelimiter() {
	c, peer := testPair(s.T(), testConf())
	defer c.Close() //nolint:errcheck // test cleanup

	s.Require().NoError(c.SendRaw([]byte("raw")))
	s.Require().NoError(c.Close())
	got, err := io.ReadAll(peer)
	s.Require().NoError(err)
	s.Equal([]byte("raw"), got)
}

func (s *ConnTestSuite) TestRoundTrip() {
	a, b := sockettest.UnixPair(s.T())
	left, err := Wrap(a, testConf())
	s.Require().NoError(err)
	defer left.Close() //nolint:errcheck // test cleanup
	right, err := Wrap(b, testConf())
	s.Require().NoError(err)
	defer right.Close() //nolint:errcheck // test cleanup

	roundTrip := func(payload []byte) bool {
		payload = bytes.ReplaceAll(payload, []byte{DefaultDelimiter}, nil)
		if err := left.SendFrame(payload); err != nil {
			return false
		}
		for {
			frame, ok, err := right.ReadFrame(0)
			if err != nil {
				return false
			}
			if ok {
				return bytes.Equal(frame, payload)
			}
		}
	}
	s.Require().NoError(quick.Check(roundTrip, &quick.Config{MaxCount: 200}))
}

func (s *ConnTestSuite) TestWriteWaitsOnNonBlockingSocket() {
	c, peer := testPair(s.T(), testConf())
	defer c.Close() //nolint:errcheck // test cleanup
	c.Socket().SetBlocking(false)

	payload := []byte(strings.Repeat("z", 2<<20))
	received := make(chan int)
	go func() {
		total := 0
		buf := make([]byte, 32<<10)
		time.Sleep(20 * time.Millisecond)
		for total < len(payload)+1 {
			n, err := peer.Read(buf)
			if err != nil {
				break
			}
			total += n
		}
		received <- total
	}()
	s.Require().NoError(c.SendFrame(payload))
	s.Equal(len(payload)+1, <-received)
}

func (s *ConnTestSuite) TestObserverSeesEvents() {
	obs := &countingObserver{}
	conf := testConf()
	conf.Observer = MultiObserver(nil, obs)
	c, peer := testPair(s.T(), conf)
	defer c.Close() //nolint:errcheck // test cleanup
	c.Socket().SetBlocking(false)

	s.Require().NoError(c.SendFrame([]byte("ping")))
	s.Require().NoError(c.SendRaw([]byte("pong")))

	_, ok, err := c.ReadFrame(0)
	s.Require().NoError(err)
	s.False(ok)

	_, err = peer.Write([]byte("a\nb\n"))
	s.Require().NoError(err)
	readUntil(s.T(), c, time.Second)
	readUntil(s.T(), c, time.Second)

	// drain what we sent so the close is orderly rather than a reset
	sent := make([]byte, len("ping\npong"))
	_, err = io.ReadFull(peer, sent)
	s.Require().NoError(err)
	s.Require().NoError(peer.Close())
	c.Socket().SetBlocking(true)
	s.Require().NoError(c.Socket().SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = c.ReadFrame(0)
	s.Require().ErrorIs(err, ErrConnectionReset)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	s.Equal(2, obs.frames)
	s.Equal(4, obs.received)
	s.GreaterOrEqual(obs.noData, 1)
	s.Equal(1, obs.resets)
	s.Equal(len("ping\n")+len("pong"), obs.sent)
	s.Equal(1, obs.sentFrames)
	s.Equal(0, obs.sendErrors)
}

func (s *ConnTestSuite) TestPeerCloseWithUnreadDataResets() {
	obs := &countingObserver{}
	conf := testConf()
	conf.Observer = obs
	c, peer := testPair(s.T(), conf)
	defer c.Close() //nolint:errcheck // test cleanup

	s.Require().NoError(c.SendFrame([]byte("never read")))
	s.Require().NoError(peer.Close())

	s.Require().NoError(c.Socket().SetReadDeadline(time.Now().Add(time.Second)))
	_, ok, err := c.ReadFrame(0)
	s.False(ok)
	s.Require().Error(err)
	s.ErrorIs(err, syscall.ECONNRESET)
	var sysErr *os.SyscallError
	s.ErrorAs(err, &sysErr)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	s.Equal(1, obs.readErrors)
	s.Equal(0, obs.resets)
}

func (s *ConnTestSuite) TestFilenoAndString() {
	client, _ := sockettest.TCPPair(s.T())
	c, err := Wrap(client, testConf())
	s.Require().NoError(err)

	fd, err := c.Fileno()
	s.Require().NoError(err)
	s.NotZero(fd)
	s.Equal("socket connected to "+client.RemoteAddr().String(), c.String())

	s.Require().NoError(c.Close())
	s.Equal(unconnectedDescription, c.String())
}

func (s *ConnTestSuite) TestUseAfterClose() {
	c, _ := testPair(s.T(), testConf())
	s.Require().NoError(c.Close())

	s.Require().ErrorIs(c.Close(), ErrClosed)
	_, _, err := c.ReadFrame(0)
	s.Require().ErrorIs(err, ErrClosed)
	s.Require().ErrorIs(c.SendRaw([]byte("x")), ErrClosed)
	s.Require().ErrorIs(c.SendFrame([]byte("x")), ErrClosed)
	_, err = c.Fileno()
	s.Require().ErrorIs(err, ErrClosed)
	c.Reset()
	s.Equal(0, c.Buffered())
}

func TestConnTestSuite(t *testing.T) {
	suite.Run(t, new(ConnTestSuite))
}
