package wallpad

import "sync"

// sendQueue is the ordered queue of encoded outbound frames. Any goroutine
// may push; only the send loop pops. Pop blocks while the queue is empty
// rather than polling. FIFO order is the only guarantee: no priorities, no
// fairness, no bound.
type sendQueue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	frames   [][]byte
	closed   bool
}

func newSendQueue() *sendQueue {
	q := &sendQueue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// push appends a frame. Frames pushed after close are dropped silently:
// a disconnect abandons pending sends rather than persisting them.
func (q *sendQueue) push(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.frames = append(q.frames, frame)
	q.nonEmpty.Signal()
}

// pop removes and returns the oldest frame, blocking while the queue is
// empty. It returns ok=false once the queue has been closed.
func (q *sendQueue) pop() (frame []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if q.closed {
		return nil, false
	}
	frame = q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// close drops all queued frames and unblocks any waiting pop.
func (q *sendQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.frames = nil
	q.nonEmpty.Broadcast()
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
