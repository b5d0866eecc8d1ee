package tasks

import (
	"sort"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// Queue is a thread-safe priority queue for Tasks, keyed by (priority
// descending, submission-time ascending) per spec.md section 4.5.
// Structurally this is the teacher's internal/tasks/queue.go, with
// Pop() replaced by a dependency-gated Claim() and status tracked via
// the Status field instead of the teacher's wider PR-review enum.
type Queue struct {
	mu     sync.RWMutex
	order  []*Task
	index  map[ids.TaskId]*Task
	clock  ids.Clock
}

// NewQueue creates an empty queue. A nil clock defaults to the system
// clock.
func NewQueue(clock ids.Clock) *Queue {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	return &Queue{
		order: make([]*Task, 0),
		index: make(map[ids.TaskId]*Task),
		clock: clock,
	}
}

// Add inserts task into the queue, maintaining priority order.
func (q *Queue) Add(task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = append(q.order, task)
	q.index[task.ID] = task
	q.sortLocked()
	return nil
}

// Predicate filters candidate tasks during Claim; it runs only on
// tasks whose dependencies are already satisfied.
type Predicate func(*Task) bool

// Claim returns the highest-priority pending task satisfying predicate
// with all dependencies completed, assigning it to agentID. A task
// with unmet dependencies is skipped (it remains in the queue) rather
// than disqualifying the whole claim attempt. Returns (nil, false) if
// nothing currently qualifies.
func (q *Queue) Claim(agentID string, predicate Predicate) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	completed := q.completedSetLocked()
	for _, t := range q.order {
		if t.Status != StatusPending {
			continue
		}
		if !t.DependenciesSatisfied(completed) {
			continue
		}
		if predicate != nil && !predicate(t) {
			continue
		}
		now := q.clock.Now()
		t.Status = StatusClaimed
		t.AssignedTo = agentID
		t.ClaimedAt = &now
		t.UpdatedAt = now
		return t, true
	}
	return nil, false
}

func (q *Queue) completedSetLocked() map[ids.TaskId]struct{} {
	set := make(map[ids.TaskId]struct{})
	for _, t := range q.order {
		if t.Status == StatusCompleted {
			set[t.ID] = struct{}{}
		}
	}
	return set
}

// MarkComplete transitions id to Completed.
func (q *Queue) MarkComplete(id ids.TaskId) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.index[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "task %s not found", id)
	}
	now := q.clock.Now()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed transitions id to Failed with reason recorded.
func (q *Queue) MarkFailed(id ids.TaskId, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.index[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "task %s not found", id)
	}
	t.Status = StatusFailed
	t.FailReason = reason
	t.UpdatedAt = q.clock.Now()
	return nil
}

// GetByID returns the task with id, or nil.
func (q *Queue) GetByID(id ids.TaskId) *Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index[id]
}

// GetByStatus returns every task currently in status.
func (q *Queue) GetByStatus(status Status) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var result []*Task
	for _, t := range q.order {
		if t.Status == status {
			result = append(result, t)
		}
	}
	return result
}

// GetByAgent returns every task assigned to agentID.
func (q *Queue) GetByAgent(agentID string) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var result []*Task
	for _, t := range q.order {
		if t.AssignedTo == agentID {
			result = append(result, t)
		}
	}
	return result
}

// Len returns the number of tasks currently tracked.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.order)
}

// All returns a snapshot of every tracked task.
func (q *Queue) All() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	result := make([]*Task, len(q.order))
	copy(result, q.order)
	return result
}

// StaleUnclaimed returns pending tasks whose dependencies are all
// satisfied but which have remained unclaimed since before cutoff --
// the Dependency analyzer's input per spec.md section 4.7.
func (q *Queue) StaleUnclaimed(cutoff time.Time) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	completed := q.completedSetLocked()
	var result []*Task
	for _, t := range q.order {
		if t.Status != StatusPending {
			continue
		}
		if !t.DependenciesSatisfied(completed) {
			continue
		}
		if t.CreatedAt.Before(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

func (q *Queue) sortLocked() {
	sort.SliceStable(q.order, func(i, j int) bool {
		if q.order[i].Priority != q.order[j].Priority {
			return q.order[i].Priority < q.order[j].Priority
		}
		return q.order[i].CreatedAt.Before(q.order[j].CreatedAt)
	})
}
