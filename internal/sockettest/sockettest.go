// Package sockettest builds connected socket pairs for tests.
package sockettest

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// UnixPair returns both ends of an AF_UNIX stream socketpair. Both ends are
// closed when the test finishes; closing them earlier is fine.
func UnixPair(t testing.TB) (net.Conn, net.Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a := fileConn(t, fds[0], "pair-a")
	b := fileConn(t, fds[1], "pair-b")
	return a, b
}

// TCPPair returns a dialed and an accepted TCP connection on the loopback interface.
func TCPPair(t testing.TB) (client net.Conn, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck // test cleanup

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, ok := <-accepted
	require.True(t, ok, "accept failed")
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func fileConn(t testing.TB, fd int, name string) net.Conn {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close() //nolint:errcheck // FileConn holds a duplicate
	conn, err := net.FileConn(f)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
