// Package adapter provides adapters for framedsock integration with external systems.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/framedsock/pkg/framed"
)

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds each connection attempt.
	Timeout time.Duration
	// BackOff schedules retries between failed attempts. nil means a single attempt.
	BackOff backoff.BackOff
	// Notify is called after every failed attempt that will be retried.
	Notify func(err error, next time.Duration)
	// Config is handed to framed.Wrap.
	Config *framed.Config
}

// Dial connects to address ("tcp" or "unix" networks) and wraps the result in
// a framed.Conn. Connection establishment stays outside the framed package;
// this is the helper the CLI uses.
func Dial(ctx context.Context, network, address string, opts DialOptions) (*framed.Conn, error) {
	dialer := net.Dialer{Timeout: opts.Timeout}
	policy := opts.BackOff
	if policy == nil {
		policy = &backoff.StopBackOff{}
	}
	conn, err := backoff.RetryNotifyWithData(func() (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}, backoff.WithContext(policy, ctx), opts.Notify)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	fc, err := framed.Wrap(conn, opts.Config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return fc, nil
}

// Listen opens a stream listener. For unix sockets a stale socket file left by
// a previous process is removed first.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := removeStaleSocket(address); err != nil {
			return nil, err
		}
	}
	return net.Listen(network, address)
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.Dial("unix", path); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%s is in use", path)
	}
	return os.Remove(path)
}
