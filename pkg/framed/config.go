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
	"io"
	"os"

	"github.com/srediag/framedsock/internal/logging"
)

const (
	// DefaultDelimiter separates frames unless Config.Delimiter says otherwise.
	DefaultDelimiter byte = '\n'
	// DefaultChunkSize is the receive size used when ReadFrame gets a non-positive size.
	DefaultChunkSize = 1024
	maxChunkSize     = 16 << 20
)

// Config is used to tune a Reader, Writer or Conn.
type Config struct {
	// Delimiter must be exactly one byte. It must never occur inside a frame
	// payload; this is not checked on send.
	Delimiter []byte

	// ChunkSize is the maximum number of bytes requested from the socket per
	// receive when ReadFrame is called with a non-positive size.
	ChunkSize int

	// Observer receives per-operation events, e.g. metrics.Collector. nil disables them.
	Observer Observer

	// LogOutput is used to control the log destination.
	LogOutput io.Writer
}

// DefaultConfig is used to return a default configuration
func DefaultConfig() *Config {
	return &Config{
		Delimiter: []byte{DefaultDelimiter},
		ChunkSize: DefaultChunkSize,
		LogOutput: os.Stdout,
	}
}

// VerifyConfig is used to verify the sanity of configuration
func VerifyConfig(config *Config) error {
	if len(config.Delimiter) != 1 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidDelimiter, len(config.Delimiter))
	}
	if config.ChunkSize <= 0 || config.ChunkSize > maxChunkSize {
		return fmt.Errorf("%w: %d not in (0, %d]", ErrInvalidChunkSize, config.ChunkSize, maxChunkSize)
	}
	return nil
}

func prepareConfig(config *Config) (*Config, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SetLogLevel changes the level of the framedsock loggers (0 trace ... 5 silent).
// The default is warn; the FRAMEDSOCK_LOG_LEVEL environment variable sets it at start-up.
func SetLogLevel(l int) {
	logging.SetLevel(l)
}
