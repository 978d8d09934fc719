package bot

import (
	"context"
	"sync"
)

// UserQueues hands each user's updates to the handler one at a time and in
// arrival order, while different users proceed in parallel. A user's drain
// goroutine starts on the first queued update and exits once the queue is
// empty.
type UserQueues struct {
	handle  HandlerFunc
	onError func(Message, error)

	mu     sync.Mutex
	queues map[int64][]queuedUpdate
	wg     sync.WaitGroup
}

type queuedUpdate struct {
	ctx context.Context
	msg Message
}

// NewUserQueues wraps h. onError, when set, receives every handler error.
func NewUserQueues(h HandlerFunc, onError func(Message, error)) *UserQueues {
	return &UserQueues{handle: h, onError: onError, queues: make(map[int64][]queuedUpdate)}
}

// Enqueue appends msg to its user's queue without blocking on the handler.
func (q *UserQueues) Enqueue(ctx context.Context, msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, running := q.queues[msg.UserID]
	q.queues[msg.UserID] = append(pending, queuedUpdate{ctx: ctx, msg: msg})
	if !running {
		q.wg.Add(1)
		go q.drain(msg.UserID)
	}
}

func (q *UserQueues) drain(user int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.queues[user]
		if len(pending) == 0 {
			delete(q.queues, user)
			q.mu.Unlock()
			return
		}
		next := pending[0]
		pending[0] = queuedUpdate{}
		q.queues[user] = pending[1:]
		q.mu.Unlock()

		if err := q.handle(next.ctx, next.msg); err != nil && q.onError != nil {
			q.onError(next.msg, err)
		}
	}
}

// Wait blocks until every queued update has been handled.
func (q *UserQueues) Wait() {
	q.wg.Wait()
}

// Len reports how many users have updates queued or in flight.
func (q *UserQueues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}
