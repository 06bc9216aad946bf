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

// Package framed provides delimiter-framed I/O over a connected stream socket.
//
// A Reader accumulates received bytes and hands out one frame per call, a
// Writer blocks until the socket is writable and sends whole buffers, and a
// Conn ties both to one socket and exposes its descriptor for external
// multiplexers.
//
// Example usage:
//
//	conn, err := framed.Wrap(tcpConn, nil)
//	if err != nil {
//	  return err
//	}
//	defer conn.Close()
//	if err := conn.SendFrame([]byte("ping")); err != nil {
//	  return err
//	}
//	for {
//	  frame, ok, err := conn.ReadFrame(0)
//	  if err != nil {
//	    return err
//	  }
//	  if ok {
//	    handle(frame)
//	  }
//	}
//
// The socket mode decides whether ReadFrame waits for data: in blocking mode it
// waits in the receive, in non-blocking mode (socket.Socket.SetBlocking) or
// once a read deadline expires it returns ok == false so the caller can retry
// when the descriptor becomes readable.
package framed
