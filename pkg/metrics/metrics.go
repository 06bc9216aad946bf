// Package metrics exports framed connection events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/framedsock/pkg/framed"
)

const subsystem = "framed"

// Collector implements framed.Observer on top of Prometheus counters. One
// Collector is meant to be shared by every connection of a process.
type Collector struct {
	framesReceived prometheus.Counter
	bytesReceived  prometheus.Counter
	noData         prometheus.Counter
	resets         prometheus.Counter
	readErrors     prometheus.Counter
	framesSent     prometheus.Counter
	bytesSent      prometheus.Counter
	sendErrors     prometheus.Counter
	sendSeconds    prometheus.Histogram
}

var _ framed.Observer = (*Collector)(nil)

// New creates the collector's metrics under namespace and registers them with
// reg. A nil reg skips registration.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	c := &Collector{
		framesReceived: counter("frames_received_total", "Total number of frames returned by ReadFrame."),
		bytesReceived:  counter("received_bytes_total", "Total number of bytes received from sockets."),
		noData:         counter("no_data_total", "Total number of ReadFrame calls that returned without a frame."),
		resets:         counter("connection_resets_total", "Total number of connections closed by the peer."),
		readErrors:     counter("read_errors_total", "Total number of receive transport failures."),
		framesSent:     counter("frames_sent_total", "Total number of frames sent."),
		bytesSent:      counter("sent_bytes_total", "Total number of bytes sent, delimiters included."),
		sendErrors:     counter("send_errors_total", "Total number of failed sends."),
		sendSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Time spent waiting for writability and sending.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.framesReceived, c.bytesReceived, c.noData, c.resets, c.readErrors,
		c.framesSent, c.bytesSent, c.sendErrors, c.sendSeconds,
	}
}

func (c *Collector) FrameReceived(int) { c.framesReceived.Inc() }

func (c *Collector) BytesReceived(n int) { c.bytesReceived.Add(float64(n)) }

func (c *Collector) NoData() { c.noData.Inc() }

func (c *Collector) ConnectionReset() { c.resets.Inc() }

func (c *Collector) ReadFailed(error) { c.readErrors.Inc() }

func (c *Collector) Sent(n int, frame bool, elapsed time.Duration, err error) {
	c.sendSeconds.Observe(elapsed.Seconds())
	if err != nil {
		c.sendErrors.Inc()
		return
	}
	c.bytesSent.Add(float64(n))
	if frame {
		c.framesSent.Inc()
	}
}
