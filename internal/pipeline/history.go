package pipeline

import "github.com/yokitheyo/imageeditor/internal/domain"

// Snapshot is a full copy of the draft at one point in time.
type Snapshot domain.DraftState

// History keeps undo and redo stacks of draft snapshots. It is not safe for
// concurrent use; the owning session serialises access.
type History struct {
	undo  []Snapshot
	redo  []Snapshot
	limit int
}

// NewHistory returns a history holding at most limit undo steps, dropping the
// oldest first. A limit of 0 means unbounded.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// CommitDraftChange records current before a new draft mutation is applied.
func (h *History) CommitDraftChange(current domain.DraftState) {
	h.undo = h.push(h.undo, Snapshot(current))
	h.redo = nil
}

// Undo returns the previous draft, saving current for Redo. It reports false
// and returns current unchanged when there is nothing to undo.
func (h *History) Undo(current domain.DraftState) (domain.DraftState, bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, Snapshot(current))
	return domain.DraftState(prev), true
}

func (h *History) Redo(current domain.DraftState) (domain.DraftState, bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = h.push(h.undo, Snapshot(current))
	return domain.DraftState(next), true
}

func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func (h *History) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

func (h *History) push(stack []Snapshot, s Snapshot) []Snapshot {
	stack = append(stack, s)
	if h.limit > 0 && len(stack) > h.limit {
		stack = append(stack[:0:0], stack[len(stack)-h.limit:]...)
	}
	return stack
}
