package graph

import "sync"

// commandQueue is the unbounded multi-producer/single-consumer channel of
// pending commands. Producers append under the mutex; the consumer swaps the
// whole slice out, so the lock is held for the swap only, never for the
// drain.
type commandQueue struct {
	mu      sync.Mutex
	pending []Command
}

func (q *commandQueue) push(cmds ...Command) {
	if len(cmds) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cmds...)
	q.mu.Unlock()
}

// drain returns all queued commands in enqueue order and installs spare,
// reset to zero length, as the new pending slice. The caller passes back the
// previously drained slice once processed, so steady-state processing
// allocates nothing.
func (q *commandQueue) drain(spare []Command) []Command {
	q.mu.Lock()
	out := q.pending
	q.pending = spare[:0]
	q.mu.Unlock()
	return out
}
