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

package socket

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/framedsock/internal/sockettest"
)

type SocketTestSuite struct {
	suite.Suite
}

func (s *SocketTestSuite) pair() (*Socket, net.Conn) {
	a, b := sockettest.UnixPair(s.T())
	sock, err := FromConn(a)
	s.Require().NoError(err)
	return sock, b
}

func (s *SocketTestSuite) TestFromConnRejectsNonStream() {
	_, err := FromConn(nil)
	s.Require().ErrorIs(err, ErrNilConn)

	p1, p2 := net.Pipe()
	defer p1.Close() //nolint:errcheck // test cleanup
	defer p2.Close() //nolint:errcheck // test cleanup
	_, err = FromConn(p1)
	s.Require().ErrorIs(err, ErrNotStreamSocket)

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer udp.Close() //nolint:errcheck // test cleanup
	_, err = FromConn(udp.(*net.UDPConn))
	s.Require().ErrorIs(err, ErrNotStreamSocket)
}

func (s *SocketTestSuite) TestFromFileRejectsPipe() {
	r, w, err := os.Pipe()
	s.Require().NoError(err)
	defer r.Close() //nolint:errcheck // test cleanup
	defer w.Close() //nolint:errcheck // test cleanup

	_, err = FromFile(r)
	s.Require().ErrorIs(err, ErrNotStreamSocket)
	_, err = FromFile(nil)
	s.Require().ErrorIs(err, ErrNilConn)
}

func (s *SocketTestSuite) TestFromFileAdoptsDescriptor() {
	a, b := sockettest.UnixPair(s.T())
	f, err := a.(*net.UnixConn).File()
	s.Require().NoError(err)
	sock, err := FromFile(f)
	s.Require().NoError(err)
	s.Require().NoError(f.Close())
	defer sock.Close() //nolint:errcheck // test cleanup

	s.Require().NoError(sock.SendAll([]byte("adopted")))
	buf := make([]byte, 16)
	n, err := b.Read(buf)
	s.Require().NoError(err)
	s.Equal("adopted", string(buf[:n]))
}

func (s *SocketTestSuite) TestRecvNonBlockingWouldBlock() {
	sock, peer := s.pair()
	sock.SetBlocking(false)
	s.False(sock.Blocking())

	_, err := sock.Recv(make([]byte, 8))
	s.Require().ErrorIs(err, ErrWouldBlock)

	_, err = peer.Write([]byte("abc"))
	s.Require().NoError(err)
	buf := make([]byte, 8)
	var n int
	s.Require().Eventually(func() bool {
		n, err = sock.Recv(buf)
		return !errors.Is(err, ErrWouldBlock)
	}, time.Second, time.Millisecond)
	s.Require().NoError(err)
	s.Equal("abc", string(buf[:n]))
}

func (s *SocketTestSuite) TestRecvBlockingWaitsForData() {
	sock, peer := s.pair()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = peer.Write([]byte("late"))
	}()
	buf := make([]byte, 8)
	n, err := sock.Recv(buf)
	s.Require().NoError(err)
	s.Equal("late", string(buf[:n]))
}

func (s *SocketTestSuite) TestRecvDeadlineIsTimeout() {
	sock, _ := s.pair()
	s.Require().NoError(sock.SetReadDeadline(time.Now().Add(10 * time.Millisecond)))
	_, err := sock.Recv(make([]byte, 8))
	s.Require().ErrorIs(err, ErrTimeout)

	s.Require().NoError(sock.SetTimeout(0))
}

func (s *SocketTestSuite) TestRecvPeerShutdownReturnsZero() {
	sock, peer := s.pair()
	s.Require().NoError(peer.Close())
	n, err := sock.Recv(make([]byte, 8))
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *SocketTestSuite) TestSendAllLargeBuffer() {
	sock, peer := s.pair()
	payload := []byte(strings.Repeat("x", 4<<20))
	done := make(chan []byte)
	go func() {
		got := make([]byte, 0, len(payload))
		buf := make([]byte, 64<<10)
		for len(got) < len(payload) {
			n, err := peer.Read(buf)
			if err != nil {
				break
			}
			got = append(got, buf[:n]...)
		}
		done <- got
	}()
	s.Require().NoError(sock.WaitWritable())
	s.Require().NoError(sock.SendAll(payload))
	s.Equal(payload, <-done)
}

func (s *SocketTestSuite) TestSendAllBrokenPipe() {
	sock, peer := s.pair()
	s.Require().NoError(peer.Close())
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = sock.SendAll([]byte("into the void"))
	}
	s.Require().Error(err)
	var sysErr *os.SyscallError
	s.Require().ErrorAs(err, &sysErr)
	s.True(errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET), "got %v", err)
}

func (s *SocketTestSuite) TestFdAndPeerName() {
	client, _ := sockettest.TCPPair(s.T())
	sock, err := FromConn(client)
	s.Require().NoError(err)

	fd, err := sock.Fd()
	s.Require().NoError(err)
	s.NotZero(fd)

	name, err := sock.PeerName()
	s.Require().NoError(err)
	s.Equal(client.RemoteAddr().String(), name)
}

func (s *SocketTestSuite) TestCloseIsTerminal() {
	sock, _ := s.pair()
	s.Require().NoError(sock.Close())
	s.Require().ErrorIs(sock.Close(), ErrClosed)

	_, err := sock.Recv(make([]byte, 1))
	s.Require().ErrorIs(err, ErrClosed)
	s.Require().ErrorIs(sock.SendAll([]byte("x")), ErrClosed)
	s.Require().ErrorIs(sock.WaitWritable(), ErrClosed)
	_, err = sock.Fd()
	s.Require().ErrorIs(err, ErrClosed)
	_, err = sock.PeerName()
	s.Require().ErrorIs(err, ErrClosed)
}

func TestSocketTestSuite(t *testing.T) {
	suite.Run(t, new(SocketTestSuite))
}
