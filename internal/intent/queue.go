// Package intent implements the per-session queue of speaking requests
// that the rule engine and moderator drain to decide who speaks next.
package intent

import (
	"sort"
	"sync"

	"github.com/roundtable/engine/pkg/types"
)

// Queue holds one session's pending Intents, ordered by types.Intent.Less:
// higher urgency level first, higher urgency score as a tiebreaker, then
// submission order. An Intent marked Interrupt bypasses ordering entirely
// and is pushed straight to the head, pre-empting whoever is about to be
// granted the floor. Whether an intent is allowed to carry Interrupt at
// all is a caller decision (moderator.Controller gates it on the
// session's current allowInterrupt phase) — Queue itself trusts the flag
// it is given.
type Queue struct {
	mu    sync.Mutex
	items []types.Intent
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Submit adds an intent to the queue. Interrupt intents jump to the head;
// all others are inserted in Less order.
func (q *Queue) Submit(i types.Intent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i.Interrupt {
		q.items = append([]types.Intent{i}, q.items...)
		return
	}

	idx := sort.Search(len(q.items), func(n int) bool {
		return !q.items[n].Less(i)
	})
	q.items = append(q.items, types.Intent{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = i
}

// Pop removes and returns the head of the queue. ok is false if the queue
// is empty.
func (q *Queue) Pop() (i types.Intent, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return types.Intent{}, false
	}
	i, q.items = q.items[0], q.items[1:]
	return i, true
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (i types.Intent, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return types.Intent{}, false
	}
	return q.items[0], true
}

// List returns a snapshot of every pending intent in queue order.
func (q *Queue) List() []types.Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.Intent, len(q.items))
	copy(out, q.items)
	return out
}

// Withdraw removes a single intent by id. Reports whether anything was
// removed.
func (q *Queue) Withdraw(intentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for idx, it := range q.items {
		if it.ID == intentID {
			q.items = append(q.items[:idx:idx], q.items[idx+1:]...)
			return true
		}
	}
	return false
}

// ClearAgent removes every pending intent submitted by agentID (used when
// an agent leaves a session or is removed by the moderator) and returns
// how many were removed.
func (q *Queue) ClearAgent(agentID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.AgentID == agentID {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	return removed
}

// Len reports the number of pending intents.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
