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

import "time"

// Observer receives events from Readers and Writers. Implementations must be
// cheap; they run inline with every call.
type Observer interface {
	// FrameReceived is called for every frame handed to the caller.
	FrameReceived(size int)
	// BytesReceived is called after every receive that returned data.
	BytesReceived(n int)
	// NoData is called when ReadFrame returns without a frame and without error.
	NoData()
	// ConnectionReset is called when the peer closed the connection.
	ConnectionReset()
	// ReadFailed is called for transport failures on receive.
	ReadFailed(err error)
	// Sent is called after every send attempt. frame tells whether a delimiter was appended.
	Sent(n int, frame bool, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(int) {}
func (nopObserver) BytesReceived(int) {}
func (nopObserver) NoData() {}
func (nopObserver) ConnectionReset() {}
func (nopObserver) ReadFailed(error) {}
func (nopObserver) Sent(int, bool, time.Duration, error) {}

type multiObserver []Observer

// MultiObserver fans every event out to all of obs. nil entries are skipped.
func MultiObserver(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) FrameReceived(size int) {
	for _, o := range m {
		o.FrameReceived(size)
	}
}

func (m multiObserver) BytesReceived(n int) {
	for _, o := range m {
		o.BytesReceived(n)
	}
}

func (m multiObserver) NoData() {
	for _, o := range m {
		o.NoData()
	}
}

func (m multiObserver) ConnectionReset() {
	for _, o := range m {
		o.ConnectionReset()
	}
}

func (m multiObserver) ReadFailed(err error) {
	for _, o := range m {
		o.ReadFailed(err)
	}
}

func (m multiObserver) Sent(n int, frame bool, elapsed time.Duration, err error) {
	for _, o := range m {
		o.Sent(n, frame, elapsed, err)
	}
}

func observerOf(config *Config) Observer {
	if config.Observer == nil {
		return nopObserver{}
	}
	return config.Observer
}
