package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
)

// Committer materialises a queued batch into the next image version.
type Committer interface {
	Commit(ctx context.Context, img domain.Image, src domain.Asset, steps []domain.Descriptor) (domain.Image, domain.Asset, error)
}

// PipelineCommitter runs the batch and keeps the result in memory only.
type PipelineCommitter struct {
	pipeline *pipeline.Pipeline
}

func NewPipelineCommitter(p *pipeline.Pipeline) *PipelineCommitter {
	return &PipelineCommitter{pipeline: p}
}

func (c *PipelineCommitter) Commit(ctx context.Context, img domain.Image, src domain.Asset, steps []domain.Descriptor) (domain.Image, domain.Asset, error) {
	out, err := c.pipeline.Apply(ctx, img.ID, src, steps)
	if err != nil {
		return img, src, err
	}
	return img.Committed(img.Path, out, len(steps)), out, nil
}

// Session is one user's edit of one image: the draft with its undo history,
// the queue of steps awaiting commit and the current state. All methods are
// safe for concurrent use; at most one commit runs at a time.
type Session struct {
	mu sync.Mutex

	id        string
	state     State
	image     domain.Image
	asset     domain.Asset
	draft     domain.DraftState
	history   *pipeline.History
	queue     *pipeline.Queue
	committer Committer

	committing bool
	cancel     context.CancelFunc
}

func New(id string, committer Committer, historyLimit int) *Session {
	return &Session{
		id:        id,
		state:     StateEmpty,
		history:   pipeline.NewHistory(historyLimit),
		queue:     pipeline.NewQueue(domain.Geometry{}),
		committer: committer,
	}
}

// View is a read-only copy of the session for display.
type View struct {
	ID      string              `json:"id"`
	State   State               `json:"state"`
	Image   domain.Image        `json:"image"`
	Draft   domain.DraftState   `json:"draft"`
	Queue   []domain.Descriptor `json:"queue"`
	CanUndo bool                `json:"can_undo"`
	CanRedo bool                `json:"can_redo"`
}

func (s *Session) ID() string {
	return s.id
}

// Load binds img to the session. asset holds the bytes of its current version;
// when asset has no geometry the image's is used.
func (s *Session) Load(img domain.Image, asset domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.state.Transition(StateLoaded)
	if err != nil {
		return err
	}
	if asset.Geometry.IsZero() {
		asset.Geometry = img.Geometry()
	}
	if asset.Format == "" {
		asset.Format = img.Format
	}

	s.image = img
	s.asset = asset
	s.queue = pipeline.NewQueue(asset.Geometry)
	s.draft = domain.BaselineDraft(asset.Geometry)
	s.history.Reset()
	s.state = next

	zlog.Logger.Info().
		Str("session_id", s.id).
		Str("image_id", img.ID).
		Int("width", asset.Geometry.Width).
		Int("height", asset.Geometry.Height).
		Msg("image loaded into session")
	return nil
}

// SetDraft records the current draft in history and then changes one field.
func (s *Session) SetDraft(field domain.DraftField, value any) (domain.DraftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target State
	switch s.state {
	case StateLoaded, StateCommitted, StateEditing:
		target = StateEditing
	case StateQueued, StateFailed:
		target = StateQueued
	default:
		return s.draft, &TransitionError{From: s.state, To: StateEditing}
	}

	next, err := s.draft.With(field, value)
	if err != nil {
		return s.draft, err
	}
	if err := s.moveTo(target); err != nil {
		return s.draft, err
	}

	s.history.CommitDraftChange(s.draft)
	s.draft = next
	return s.draft, nil
}

func (s *Session) Undo() (domain.DraftState, bool, error) {
	return s.step((*pipeline.History).Undo)
}

func (s *Session) Redo() (domain.DraftState, bool, error) {
	return s.step((*pipeline.History).Redo)
}

func (s *Session) step(move func(*pipeline.History, domain.DraftState) (domain.DraftState, bool)) (domain.DraftState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing && s.state != StateQueued {
		return s.draft, false, fmt.Errorf("%w: undo/redo in %s", domain.ErrInvalidState, s.state)
	}
	draft, moved := move(s.history, s.draft)
	s.draft = draft
	return draft, moved, nil
}

// Enqueue validates d against the geometry the queued steps will produce and
// appends it. A rejected step leaves the session untouched.
func (s *Session) Enqueue(d domain.Descriptor) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canEnqueue(); err != nil {
		return s.queue.Len(), err
	}
	n, err := s.queue.Enqueue(d)
	if err != nil {
		return n, err
	}
	s.afterEnqueue()
	return n, nil
}

// EnqueueDraft turns the current draft into steps and queues all of them.
func (s *Session) EnqueueDraft() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canEnqueue(); err != nil {
		return s.queue.Len(), err
	}
	steps := s.draft.Descriptors(s.asset.Geometry)
	if len(steps) == 0 {
		return s.queue.Len(), fmt.Errorf("enqueue draft: %w", domain.ErrEmptyQueue)
	}
	n, err := s.queue.EnqueueAll(steps)
	if err != nil {
		return n, err
	}
	s.afterEnqueue()
	return n, nil
}

func (s *Session) canEnqueue() error {
	switch s.state {
	case StateCommitting:
		return domain.ErrCommitInProgress
	case StateEmpty:
		return &TransitionError{From: s.state, To: StateQueued}
	}
	return nil
}

func (s *Session) afterEnqueue() {
	s.history.CommitDraftChange(s.draft)
	switch s.state {
	case StateLoaded, StateCommitted:
		s.state = StateEditing
	}
	s.state = StateQueued
}

func (s *Session) ListQueue() []domain.Descriptor {
	return s.queue.List()
}

// ClearQueue drops every queued step. It is refused while a commit runs.
func (s *Session) ClearQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateCommitting:
		return domain.ErrCommitInProgress
	case StateEmpty:
		return &TransitionError{From: s.state, To: StateEditing}
	}
	if err := s.queue.Clear(); err != nil {
		return err
	}
	if s.state == StateQueued || s.state == StateFailed {
		return s.moveTo(StateEditing)
	}
	return nil
}

// Commit applies the queue to the current image version. While it runs the
// queue is frozen and the session lock is released, so state and queue reads
// stay responsive. On success the result becomes the new baseline; on failure
// the queue is kept as it was and the session moves to failed.
func (s *Session) Commit(ctx context.Context) (domain.Image, error) {
	s.mu.Lock()
	if s.committing {
		s.mu.Unlock()
		return domain.Image{}, domain.ErrCommitInProgress
	}
	if s.state == StateFailed {
		s.state = StateQueued
	}
	if s.state == StateQueued && s.queue.Len() == 0 {
		s.mu.Unlock()
		return domain.Image{}, domain.ErrEmptyQueue
	}
	if err := s.moveTo(StateCommitting); err != nil {
		s.mu.Unlock()
		return domain.Image{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.committing = true
	s.cancel = cancel
	s.queue.Freeze()
	img, src, steps := s.image, s.asset, s.queue.List()
	s.mu.Unlock()

	zlog.Logger.Info().
		Str("session_id", s.id).
		Str("image_id", img.ID).
		Int("steps", len(steps)).
		Msg("commit started")

	next, out, err := s.runCommitter(ctx, img, src, steps)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.committing = false
	s.cancel = nil
	s.queue.Unfreeze()

	if err != nil {
		s.state = StateFailed
		zlog.Logger.Error().
			Err(err).
			Str("session_id", s.id).
			Str("image_id", img.ID).
			Msg("commit failed, queue kept")
		return domain.Image{}, err
	}

	if err := s.queue.Clear(); err != nil {
		return domain.Image{}, err
	}
	s.queue.Rebase(out.Geometry)
	s.image = next
	s.asset = out
	s.draft = domain.BaselineDraft(out.Geometry)
	s.history.Reset()
	s.state = StateCommitted

	zlog.Logger.Info().
		Str("session_id", s.id).
		Str("image_id", next.ID).
		Int64("version", next.Version).
		Int("width", out.Geometry.Width).
		Int("height", out.Geometry.Height).
		Msg("commit finished")
	return next, nil
}

// runCommitter turns a panic in the committer into an error so the commit
// guard and the frozen queue are always released.
func (s *Session) runCommitter(ctx context.Context, img domain.Image, src domain.Asset, steps []domain.Descriptor) (next domain.Image, out domain.Asset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit of image %s panicked: %v", img.ID, r)
		}
	}()
	return s.committer.Commit(ctx, img, src, steps)
}

// CancelCommit asks an in-flight commit to stop before its next step. It
// reports whether there was one to cancel.
func (s *Session) CancelCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.committing || s.cancel == nil {
		return false
	}
	s.cancel()
	zlog.Logger.Info().Str("session_id", s.id).Msg("commit cancellation requested")
	return true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Draft() domain.DraftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) Image() domain.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

func (s *Session) Asset() domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:      s.id,
		State:   s.state,
		Image:   s.image,
		Draft:   s.draft,
		Queue:   s.queue.List(),
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
	}
}

func (s *Session) moveTo(to State) error {
	next, err := s.state.Transition(to)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}
