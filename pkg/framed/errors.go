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
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrInvalidDelimiter is returned when the configured delimiter is not exactly one byte.
	ErrInvalidDelimiter = errors.New("framed: delimiter must be 1 byte long")

	// ErrInvalidChunkSize is returned when the configured chunk size is out of range.
	ErrInvalidChunkSize = errors.New("framed: invalid chunk size")

	// ErrConnectionReset is returned when a receive yields zero bytes, i.e. the
	// peer closed the connection. It matches syscall.ECONNRESET with errors.Is.
	ErrConnectionReset = fmt.Errorf("framed: connection closed by peer: %w", syscall.ECONNRESET)

	// ErrClosed is returned for any call after Close.
	ErrClosed = errors.New("framed: use of closed connection")
)
