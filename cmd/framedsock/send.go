package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/srediag/framedsock/adapter"
	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/framed"
)

func sendCmd() *cobra.Command {
	var (
		network      string
		address      string
		delimiter    string
		dialTimeout  time.Duration
		retries      uint64
		replyTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send stdin lines as frames and print the frames received in reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			log := logging.New("send", os.Stderr)
			conf := framed.DefaultConfig()
			conf.Delimiter = delim
			conf.LogOutput = os.Stderr

			c, err := adapter.Dial(cmd.Context(), network, address, adapter.DialOptions{
				Timeout: dialTimeout,
				BackOff: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries),
				Notify: func(err error, next time.Duration) {
					log.Warnf("%v; retrying in %v", err, next)
				},
				Config: conf,
			})
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck // process exit
			return sendLines(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout(), replyTimeout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&network, "network", defaultNetwork, "Network: tcp or unix")
	f.StringVar(&address, "addr", defaultAddress, "Server address or unix socket path")
	f.StringVar(&delimiter, "delimiter", `\n`, "Frame delimiter, one byte; Go escapes allowed")
	f.DurationVar(&dialTimeout, "dial-timeout", 5*time.Second, "Timeout of each connection attempt")
	f.Uint64Var(&retries, "retries", 5, "Connection attempts retried before giving up")
	f.DurationVar(&replyTimeout, "reply-timeout", time.Second, "How long to wait for a reply after each frame; 0 disables waiting")
	return cmd
}

// sendLines sends each line of in as one frame and copies at most one reply
// frame per line to out.
func sendLines(ctx context.Context, c *framed.Conn, in io.Reader, out io.Writer, replyTimeout time.Duration) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.SendFrame(scanner.Bytes()); err != nil {
			return err
		}
		if replyTimeout <= 0 {
			continue
		}
		reply, ok, err := readReply(c, replyTimeout)
		if err != nil {
			return err
		}
		if ok {
			if _, err := fmt.Fprintf(out, "%s\n", reply); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func readReply(c *framed.Conn, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	if err := c.Socket().SetReadDeadline(deadline); err != nil {
		return nil, false, err
	}
	for time.Now().Before(deadline) {
		frame, ok, err := c.ReadFrame(0)
		if err != nil || ok {
			return frame, ok, err
		}
	}
	return nil, false, nil
}
