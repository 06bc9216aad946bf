package hub

import (
	"fmt"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

// outbox holds the frames waiting to be written to one connection.
type outbox struct {
	q *queuepkg.Queue
}

func newOutbox(capHint int64) *outbox {
	return &outbox{q: queuepkg.New(capHint)}
}

// pop blocks until a frame is queued or the outbox is disposed.
func (o *outbox) pop() ([]byte, error) {
	items, err := o.q.Get(1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, queuepkg.ErrDisposed
	}
	frame, ok := items[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("hub: invalid outbox element %T", items[0])
	}
	return frame, nil
}

func (o *outbox) put(frame []byte) error {
	return o.q.Put(frame)
}

func (o *outbox) len() int64 {
	return o.q.Len()
}

func (o *outbox) dispose() {
	o.q.Dispose()
}
