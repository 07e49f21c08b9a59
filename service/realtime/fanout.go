package realtime

import (
	"sync"

	"RTChat/tools/safe"
)

type fanoutJob struct {
	conns   []*Conn
	payload []byte
}

// Fanout spreads one payload across many connection queues on a small worker
// pool, so a large room never blocks the handler that triggered the
// broadcast.
type Fanout struct {
	jobs      chan fanoutJob
	done      chan struct{}
	closeOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{
		jobs: make(chan fanoutJob, queue),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		safe.Go(func() {
			for {
				select {
				case <-f.done:
					return
				case job := <-f.jobs:
					for _, c := range job.conns {
						// Slow client: frame dropped, connection kept.
						c.queue(job.payload)
					}
				}
			}
		})
	}
	return f
}

func (f *Fanout) Broadcast(conns []*Conn, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	case <-f.done:
	}
}

// Close stops the worker pool. Broadcast after Close is a no-op.
func (f *Fanout) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
