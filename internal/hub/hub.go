// Package hub serves framed connections in echo or broadcast mode. It is the
// server side of cmd/framedsock and sits entirely outside the framing core:
// the hub owns accept, scheduling and shutdown, while each connection is a
// plain framed.Conn driven from two pooled workers.
package hub

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/framed"
)

var (
	// ErrHubClosed is returned by Handle, Serve and Close once the hub is closed.
	ErrHubClosed = errors.New("hub: closed")
	// ErrHubFull is returned by Handle when no worker is available.
	ErrHubFull = errors.New("hub: connection limit reached")
)

// Hub fans frames out between connections.
type Hub struct {
	config *Config
	pool   *ants.Pool
	peers  cmap.ConcurrentMap[string, *peer]
	seq    atomic.Uint64
	log    *logging.Logger

	mu     sync.Mutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

type peer struct {
	id         string
	desc       string
	conn       *framed.Conn
	out        *outbox
	broken     atomic.Bool
	writerDone chan struct{}
}

type poolLogger struct {
	log *logging.Logger
}

func (l poolLogger) Printf(format string, args ...any) {
	l.log.Warnf(format, args...)
}

// New creates a hub. A nil config means DefaultConfig().
func New(config *Config) (*Hub, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	log := logging.New("hub", config.LogOutput)
	pool, err := ants.NewPool(2*config.MaxConns,
		ants.WithNonblocking(true),
		ants.WithLogger(poolLogger{log: log}),
		ants.WithPanicHandler(func(p any) {
			log.Errorf("connection worker panic: %v", p)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Hub{
		config: config,
		pool:   pool,
		peers:  cmap.New[*peer](),
		log:    log,
	}, nil
}

// Len returns the number of connections currently served.
func (h *Hub) Len() int {
	return h.peers.Count()
}

// Handle starts serving conn and returns immediately. The hub owns conn from
// here on, including on error.
func (h *Hub) Handle(conn net.Conn) error {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()

	fc, err := framed.Wrap(conn, h.config.Framed)
	if err != nil {
		h.wg.Done()
		_ = conn.Close()
		return err
	}
	p := &peer{
		id:         strconv.FormatUint(h.seq.Add(1), 10),
		desc:       fc.String(),
		conn:       fc,
		out:        newOutbox(h.config.QueueCap),
		writerDone: make(chan struct{}),
	}
	if err := h.pool.Submit(func() { h.writeLoop(p) }); err != nil {
		h.wg.Done()
		_ = fc.Close()
		return h.submitError(err)
	}
	h.peers.Set(p.id, p)
	if err := h.pool.Submit(func() { h.readLoop(p) }); err != nil {
		h.peers.Remove(p.id)
		p.out.dispose()
		<-p.writerDone
		h.wg.Done()
		_ = fc.Close()
		return h.submitError(err)
	}
	h.log.Debugf("serving %s as peer %s", p.desc, p.id)
	return nil
}

func (h *Hub) submitError(err error) error {
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrHubFull
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrHubClosed
	}
	return err
}

// Serve accepts connections from ln until ctx is done or the hub is closed,
// then closes ln. Accept failures other than a closed listener are retried
// with exponential backoff.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.closed.Load() {
				return ErrHubClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			wait := b.NextBackOff()
			h.log.Warnf("accept failed: %v; retrying in %v", err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		b.Reset()
		if err := h.Handle(conn); err != nil {
			if errors.Is(err, ErrHubClosed) {
				return err
			}
			h.log.Warnf("rejected connection: %v", err)
		}
	}
}

// Close stops every connection and waits for their workers to finish.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.closed.Store(true)
	h.mu.Unlock()

	now := time.Now()
	h.peers.IterCb(func(_ string, p *peer) {
		_ = p.conn.Socket().SetReadDeadline(now)
	})
	h.wg.Wait()
	h.pool.Release()
	return nil
}

func (h *Hub) readLoop(p *peer) {
	defer h.finish(p)
	sock := p.conn.Socket()
	for {
		if h.closed.Load() || p.broken.Load() {
			return
		}
		if err := sock.SetReadDeadline(time.Now().Add(h.config.PollInterval)); err != nil {
			h.log.Warnf("%s: arm read deadline: %v", p.desc, err)
			return
		}
		frame, ok, err := p.conn.ReadFrame(0)
		if err != nil {
			if errors.Is(err, syscall.ECONNRESET) {
				h.log.Debugf("%s: peer %s left: %v", p.desc, p.id, err)
			} else {
				h.log.Warnf("%s: read failed: %v", p.desc, err)
			}
			return
		}
		if !ok {
			continue
		}
		h.dispatch(p, frame)
	}
}

func (h *Hub) dispatch(from *peer, frame []byte) {
	if h.config.Mode == ModeEcho {
		_ = from.out.put(frame)
		return
	}
	h.peers.IterCb(func(id string, p *peer) {
		if id == from.id {
			return
		}
		_ = p.out.put(frame)
	})
}

func (h *Hub) writeLoop(p *peer) {
	defer close(p.writerDone)
	for {
		frame, err := p.out.pop()
		if err != nil {
			return
		}
		if err := p.conn.SendFrame(frame); err != nil {
			h.log.Warnf("%s: send failed: %v", p.desc, err)
			p.broken.Store(true)
			_ = p.conn.Socket().SetReadDeadline(time.Now())
			return
		}
	}
}

// finish runs on the reader worker. It is the only place a served connection
// is closed, so it first stops the writer.
func (h *Hub) finish(p *peer) {
	h.peers.Remove(p.id)
	p.out.dispose()
	_ = p.conn.Socket().SetWriteDeadline(time.Now())
	<-p.writerDone
	if err := p.conn.Close(); err != nil && !errors.Is(err, framed.ErrClosed) {
		h.log.Debugf("%s: close: %v", p.desc, err)
	}
	h.wg.Done()
}
