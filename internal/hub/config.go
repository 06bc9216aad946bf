package hub

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/srediag/framedsock/pkg/framed"
)

// Mode selects where a received frame is delivered.
type Mode int

const (
	// ModeEcho sends every frame back to the connection it came from.
	ModeEcho Mode = iota
	// ModeBroadcast sends every frame to all other connections.
	ModeBroadcast
)

const (
	defaultMaxConns     = 1024
	defaultQueueCap     = 64
	defaultPollInterval = 250 * time.Millisecond
)

// ParseMode accepts "echo" or "broadcast", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "echo":
		return ModeEcho, nil
	case "broadcast":
		return ModeBroadcast, nil
	}
	return 0, fmt.Errorf("hub: unknown mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeEcho:
		return "echo"
	case ModeBroadcast:
		return "broadcast"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Config is used to tune the hub.
type Config struct {
	Mode Mode

	// MaxConns bounds the number of connections served at once. Each
	// connection holds two workers of the hub's pool.
	MaxConns int

	// QueueCap is the initial capacity hint of each outbound frame queue.
	QueueCap int64

	// PollInterval is the read deadline armed before each read, which bounds
	// how long a connection takes to notice Close.
	PollInterval time.Duration

	// Framed configures every connection; nil means framed.DefaultConfig().
	Framed *framed.Config

	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
}

// DefaultConfig returns an echo hub configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:         ModeEcho,
		MaxConns:     defaultMaxConns,
		QueueCap:     defaultQueueCap,
		PollInterval: defaultPollInterval,
	}
}

// VerifyConfig is used to verify the sanity of configuration
func VerifyConfig(config *Config) error {
	if config.Mode != ModeEcho && config.Mode != ModeBroadcast {
		return fmt.Errorf("hub: unknown mode %d", int(config.Mode))
	}
	if config.MaxConns <= 0 {
		return errors.New("hub: MaxConns must be positive")
	}
	if config.QueueCap <= 0 {
		return errors.New("hub: QueueCap must be positive")
	}
	if config.PollInterval <= 0 {
		return errors.New("hub: PollInterval must be positive")
	}
	if config.Framed != nil {
		return framed.VerifyConfig(config.Framed)
	}
	return nil
}
