package pipeline

import (
	"fmt"
	"sync"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// Queue is the ordered list of validated steps awaiting commit for one image.
// Steps are only ever appended or cleared as a whole.
type Queue struct {
	mu       sync.RWMutex
	baseline domain.Geometry
	items    []domain.Descriptor
	frozen   bool
}

func NewQueue(baseline domain.Geometry) *Queue {
	return &Queue{baseline: baseline}
}

// Enqueue validates d against the geometry produced by the steps already
// queued and appends it. It returns the new queue length.
func (q *Queue) Enqueue(d domain.Descriptor) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return len(q.items), domain.ErrQueueFrozen
	}
	if err := Validate(d, q.tailGeometry()); err != nil {
		return len(q.items), err
	}
	q.items = append(q.items, d)
	return len(q.items), nil
}

// EnqueueAll appends steps in order, or none of them if any step is invalid.
func (q *Queue) EnqueueAll(steps []domain.Descriptor) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return len(q.items), domain.ErrQueueFrozen
	}
	g := q.tailGeometry()
	for i, d := range steps {
		if err := Validate(d, g); err != nil {
			return len(q.items), fmt.Errorf("step %d: %w", i, err)
		}
		g = d.OutputGeometry(g)
	}
	q.items = append(q.items, steps...)
	return len(q.items), nil
}

// List returns a copy of the queued steps in enqueue order.
func (q *Queue) List() []domain.Descriptor {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]domain.Descriptor, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return domain.ErrQueueFrozen
	}
	q.items = nil
	return nil
}

// Freeze rejects further changes until Unfreeze; a commit holds the queue
// frozen while it runs.
func (q *Queue) Freeze() {
	q.mu.Lock()
	q.frozen = true
	q.mu.Unlock()
}

func (q *Queue) Unfreeze() {
	q.mu.Lock()
	q.frozen = false
	q.mu.Unlock()
}

func (q *Queue) Frozen() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.frozen
}

func (q *Queue) Baseline() domain.Geometry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.baseline
}

// Rebase sets a new baseline geometry. Callers clear the queue first; steps
// validated against the old baseline would otherwise be stale.
func (q *Queue) Rebase(g domain.Geometry) {
	q.mu.Lock()
	q.baseline = g
	q.mu.Unlock()
}

// Geometry predicts the geometry after every queued step has run.
func (q *Queue) Geometry() domain.Geometry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tailGeometry()
}

func (q *Queue) tailGeometry() domain.Geometry {
	g := q.baseline
	for _, d := range q.items {
		g = d.OutputGeometry(g)
	}
	return g
}
