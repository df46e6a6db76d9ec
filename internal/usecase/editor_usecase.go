package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/lock"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/storage"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
	"github.com/yokitheyo/imageeditor/internal/session"
)

type EditorSettings struct {
	HistoryLimit     int
	CommitTimeout    time.Duration
	DefaultWatermark string
}

// EditorUsecase owns the open edit sessions and persists their commits. It
// is also the session.Committer: a commit holds the image lock, runs the
// batch in memory and only then writes a new object and bumps the version.
type EditorUsecase struct {
	repo     domain.ImageRepository
	storage  storage.Storage
	locker   lock.Locker
	pipeline *pipeline.Pipeline
	sessions *session.Manager
	settings EditorSettings
}

func NewEditorUsecase(
	repo domain.ImageRepository,
	storage storage.Storage,
	locker lock.Locker,
	p *pipeline.Pipeline,
	settings EditorSettings,
) *EditorUsecase {
	if settings.CommitTimeout <= 0 {
		settings.CommitTimeout = 2 * time.Minute
	}
	u := &EditorUsecase{
		repo:     repo,
		storage:  storage,
		locker:   locker,
		pipeline: p,
		settings: settings,
	}
	u.sessions = session.NewManager(u, settings.HistoryLimit)
	return u
}

func (u *EditorUsecase) Commit(ctx context.Context, img domain.Image, src domain.Asset, steps []domain.Descriptor) (domain.Image, domain.Asset, error) {
	release, err := u.locker.Lock(ctx, img.ID)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("image_id", img.ID).Msg("failed to acquire image lock")
		return img, src, fmt.Errorf("lock image: %w", err)
	}
	defer release()

	stored, err := u.repo.FindByID(ctx, img.ID)
	if err != nil {
		return img, src, err
	}
	if stored.Version != img.Version {
		zlog.Logger.Warn().
			Str("image_id", img.ID).
			Int64("session_version", img.Version).
			Int64("stored_version", stored.Version).
			Msg("commit started from a stale version")
		return img, src, domain.ErrVersionConflict
	}

	if len(src.Data) == 0 {
		src, err = u.loadAsset(ctx, stored)
		if err != nil {
			return img, src, err
		}
	}

	out, err := u.pipeline.Apply(ctx, img.ID, src, steps)
	if err != nil {
		return img, src, err
	}

	next := stored.Committed("", out, len(steps))
	filename := fmt.Sprintf("%s_v%d%s", next.ID, next.Version, out.Format.Extension())
	path, err := u.storage.SaveCommitted(ctx, filename, bytes.NewReader(out.Data))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", img.ID).Str("filename", filename).Msg("failed to save committed file")
		return img, src, fmt.Errorf("save committed: %w", err)
	}
	next.Path = path

	if err := u.repo.UpdateCommitted(ctx, &next, stored.Version, steps); err != nil {
		if delErr := u.storage.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			zlog.Logger.Error().Err(delErr).Str("path", path).Msg("failed to remove orphaned committed file")
		}
		return img, src, err
	}

	// the previous committed object is unreachable now; the original is kept
	if stored.Path != "" && stored.Path != stored.OriginalPath && stored.Path != path {
		if err := u.storage.Delete(context.WithoutCancel(ctx), stored.Path); err != nil {
			zlog.Logger.Warn().Err(err).Str("path", stored.Path).Msg("failed to remove superseded version")
		}
	}

	zlog.Logger.Info().
		Str("image_id", next.ID).
		Int64("version", next.Version).
		Str("path", next.Path).
		Int("width", next.Width).
		Int("height", next.Height).
		Msg("image committed")
	return next, out, nil
}

func (u *EditorUsecase) OpenSession(ctx context.Context, imageID string) (*session.Session, error) {
	img, err := u.repo.FindByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if !img.CanBeProcessed() {
		return nil, domain.ErrAlreadyProcessing
	}
	asset, err := u.loadAsset(ctx, img)
	if err != nil {
		return nil, err
	}
	return u.sessions.Open(*img, asset)
}

func (u *EditorUsecase) Session(id string) (*session.Session, error) {
	return u.sessions.Get(id)
}

func (u *EditorUsecase) CloseSession(id string) error {
	return u.sessions.Close(id)
}

func (u *EditorUsecase) SetDraft(id string, field domain.DraftField, value any) (domain.DraftState, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return domain.DraftState{}, err
	}
	return s.SetDraft(field, value)
}

func (u *EditorUsecase) Undo(id string) (domain.DraftState, bool, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return domain.DraftState{}, false, err
	}
	return s.Undo()
}

func (u *EditorUsecase) Redo(id string) (domain.DraftState, bool, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return domain.DraftState{}, false, err
	}
	return s.Redo()
}

// Enqueue appends d to the session queue. A nil-equivalent descriptor
// enqueues the current draft instead.
func (u *EditorUsecase) Enqueue(id string, d domain.Descriptor) (int, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return 0, err
	}
	if d.IsZero() {
		return s.EnqueueDraft()
	}
	return s.Enqueue(withDefaults(d, u.settings.DefaultWatermark))
}

func (u *EditorUsecase) Queue(id string) ([]domain.Descriptor, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return s.ListQueue(), nil
}

func (u *EditorUsecase) ClearQueue(id string) error {
	s, err := u.sessions.Get(id)
	if err != nil {
		return err
	}
	return s.ClearQueue()
}

// CommitSession runs the session commit detached from ctx, bounded by the
// configured timeout, so only CancelSession or the timeout can stop it.
func (u *EditorUsecase) CommitSession(ctx context.Context, id string) (domain.Image, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return domain.Image{}, err
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.settings.CommitTimeout)
	defer cancel()
	return s.Commit(commitCtx)
}

func (u *EditorUsecase) CancelSession(id string) (bool, error) {
	s, err := u.sessions.Get(id)
	if err != nil {
		return false, err
	}
	return s.CancelCommit(), nil
}

func (u *EditorUsecase) loadAsset(ctx context.Context, img *domain.Image) (domain.Asset, error) {
	rc, err := u.storage.Get(ctx, img.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return domain.Asset{}, domain.ErrImageNotFound
		}
		return domain.Asset{}, fmt.Errorf("get image file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("read image file: %w", err)
	}
	return domain.Asset{
		Data:     data,
		Geometry: img.Geometry(),
		Format:   img.Format,
	}, nil
}

// withDefaults fills an empty watermark text with the configured default.
func withDefaults(d domain.Descriptor, watermark string) domain.Descriptor {
	p, ok := d.Params().(domain.WatermarkParams)
	if !ok || p.Text != "" || watermark == "" {
		return d
	}
	p.Text = watermark
	return domain.NewDescriptor(p)
}

// validateBatch checks steps in order against the geometry each one will see.
func validateBatch(img *domain.Image, steps []domain.Descriptor) error {
	if len(steps) == 0 {
		return domain.ErrEmptyQueue
	}
	q := pipeline.NewQueue(img.Geometry())
	_, err := q.EnqueueAll(steps)
	return err
}
