package usecase

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/imageeditor/internal/config"
	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/lock"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/storage"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
	"github.com/yokitheyo/imageeditor/internal/session"
)

type memRepo struct {
	mu      sync.Mutex
	images  map[string]domain.Image
	applied map[string][]domain.AppliedTransformation
}

func newMemRepo() *memRepo {
	return &memRepo{
		images:  make(map[string]domain.Image),
		applied: make(map[string][]domain.AppliedTransformation),
	}
}

func (r *memRepo) Create(_ context.Context, image *domain.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[image.ID] = *image
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return &img, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return domain.ErrImageNotFound
	}
	delete(r.images, id)
	delete(r.applied, id)
	return nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Image
	for _, img := range r.images {
		img := img
		out = append(out, &img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, status domain.ImageStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return domain.ErrImageNotFound
	}
	img.Status = status
	img.ErrorMessage = errMsg
	r.images[id] = img
	return nil
}

func (r *memRepo) UpdateCommitted(_ context.Context, image *domain.Image, expectedVersion int64, steps []domain.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.images[image.ID]
	if !ok {
		return domain.ErrImageNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	r.images[image.ID] = *image
	for i, d := range steps {
		r.applied[image.ID] = append(r.applied[image.ID], domain.AppliedTransformation{
			ImageID:    image.ID,
			Version:    image.Version,
			Seq:        i,
			Descriptor: d,
			AppliedAt:  time.Now(),
		})
	}
	return nil
}

func (r *memRepo) Transformations(_ context.Context, id string) ([]domain.AppliedTransformation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AppliedTransformation(nil), r.applied[id]...), nil
}

func (r *memRepo) bumpVersion(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img := r.images[id]
	img.Version++
	r.images[id] = img
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) save(prefix, filename string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := prefix + "/" + filename
	s.objects[path] = data
	return path, nil
}

func (s *memStorage) SaveOriginal(_ context.Context, filename string, reader io.Reader) (string, error) {
	return s.save("original", filename, reader)
}

func (s *memStorage) SaveCommitted(_ context.Context, filename string, reader io.Reader) (string, error) {
	return s.save("committed", filename, reader)
}

func (s *memStorage) Get(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, path)
	return nil
}

func (s *memStorage) DeleteAll(ctx context.Context, paths ...string) error {
	var lastErr error
	for _, p := range paths {
		if err := s.Delete(ctx, p); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *memStorage) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []publishedTask
	err   error
}

type publishedTask struct {
	imageID string
	version int64
	steps   []domain.Descriptor
}

func (q *recordingQueue) PublishTransformTask(_ context.Context, imageID string, version int64, steps []domain.Descriptor) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, publishedTask{imageID: imageID, version: version, steps: steps})
	return nil
}

func (q *recordingQueue) Close() error { return nil }

type fixture struct {
	repo      *memRepo
	store     *memStorage
	queue     *recordingQueue
	images    *ImageUsecase
	editor    *EditorUsecase
	processor *ProcessorUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  newMemRepo(),
		store: newMemStorage(),
		queue: &recordingQueue{},
	}
	exec := processor.NewImageProcessor(&config.ProcessingConfig{MaxPixels: 2_000_000})
	f.images = NewImageUsecase(f.repo, f.store, f.queue, []string{"png", "jpg", "jpeg"}, "Pik-Cha")
	f.editor = NewEditorUsecase(f.repo, f.store, lock.NewLocal(time.Second), pipeline.New(exec), EditorSettings{
		HistoryLimit:     10,
		CommitTimeout:    10 * time.Second,
		DefaultWatermark: "Pik-Cha",
	})
	f.processor = NewProcessorUsecase(f.repo, f.editor)
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, w, h int) *domain.Image {
	t.Helper()
	data := pngBytes(t, w, h)
	img, err := f.images.UploadImage(context.Background(), "photo.png", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestUploadStoresFirstVersion(t *testing.T) {
	f := newFixture(t)
	img := f.upload(t, 1024, 790)

	assert.Equal(t, int64(1), img.Version)
	assert.Equal(t, domain.FormatPNG, img.Format)
	assert.Equal(t, domain.Geometry{Width: 1024, Height: 790}, img.Geometry())
	assert.Equal(t, img.OriginalPath, img.Path)
	assert.Equal(t, domain.StatusReady, img.Status)
	assert.Equal(t, []string{"original/" + img.ID + ".png"}, f.store.paths())
}

func TestUploadRejectsBadFiles(t *testing.T) {
	f := newFixture(t)

	_, err := f.images.UploadImage(context.Background(), "x.png", 4, bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, domain.ErrInvalidImageData)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(4, 4, color.White), imaging.GIF))
	_, err = f.images.UploadImage(context.Background(), "x.gif", int64(buf.Len()), &buf)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	assert.Empty(t, f.store.paths())
}

func TestSessionCommitPersistsNewVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 1024, 790)

	s, err := f.editor.OpenSession(ctx, img.ID)
	require.NoError(t, err)

	_, err = f.editor.Enqueue(s.ID(), domain.NewRotate(90))
	require.NoError(t, err)
	_, err = f.editor.Enqueue(s.ID(), domain.NewResize(600, 800))
	require.NoError(t, err)
	_, err = f.editor.Enqueue(s.ID(), domain.NewFormat(domain.FormatJPEG))
	require.NoError(t, err)

	committed, err := f.editor.CommitSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), committed.Version)
	assert.Equal(t, 3, committed.Transformations)
	assert.Equal(t, domain.Geometry{Width: 600, Height: 800}, committed.Geometry())
	assert.Equal(t, domain.FormatJPEG, committed.Format)
	assert.Equal(t, session.StateCommitted, s.State())

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, committed, *stored)
	assert.Equal(t, "committed/"+img.ID+"_v2.jpg", stored.Path)

	applied, err := f.images.ListTransformations(ctx, img.ID)
	require.NoError(t, err)
	require.Len(t, applied, 3)
	assert.Equal(t, domain.KindRotate, applied[0].Descriptor.Kind())
	assert.Equal(t, 2, applied[2].Seq)

	file, name, err := f.images.GetImageFile(ctx, img.ID, false)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "photo_v2.jpg", name)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	g, format, err := processor.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, domain.Geometry{Width: 600, Height: 800}, g)
	assert.Equal(t, domain.FormatJPEG, format)

	_, name, err = f.images.GetImageFile(ctx, img.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", name)
}

func TestSecondCommitReplacesPreviousVersionObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)

	s, err := f.editor.OpenSession(ctx, img.ID)
	require.NoError(t, err)

	_, err = f.editor.Enqueue(s.ID(), domain.NewFlip())
	require.NoError(t, err)
	_, err = f.editor.CommitSession(ctx, s.ID())
	require.NoError(t, err)

	_, err = f.editor.Enqueue(s.ID(), domain.NewMirror())
	require.NoError(t, err)
	committed, err := f.editor.CommitSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(3), committed.Version)

	assert.Equal(t, []string{
		"committed/" + img.ID + "_v3.png",
		"original/" + img.ID + ".png",
	}, f.store.paths())
}

func TestCommitFailureLeavesImageUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)

	s, err := f.editor.OpenSession(ctx, img.ID)
	require.NoError(t, err)
	_, err = f.editor.Enqueue(s.ID(), domain.NewFlip())
	require.NoError(t, err)
	// passes validation but exceeds the executor's pixel limit
	_, err = f.editor.Enqueue(s.ID(), domain.NewResize(2000, 2000))
	require.NoError(t, err)

	_, err = f.editor.CommitSession(ctx, s.ID())
	var pipeErr *domain.PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, 1, pipeErr.FailedAt)
	assert.Equal(t, domain.KindResize, pipeErr.Kind)

	assert.Equal(t, session.StateFailed, s.State())
	queue, err := f.editor.Queue(s.ID())
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, *img, *stored)
	assert.Equal(t, []string{"original/" + img.ID + ".png"}, f.store.paths())
}

func TestCommitDetectsConcurrentVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)

	s, err := f.editor.OpenSession(ctx, img.ID)
	require.NoError(t, err)
	_, err = f.editor.Enqueue(s.ID(), domain.NewMirror())
	require.NoError(t, err)

	f.repo.bumpVersion(img.ID)

	_, err = f.editor.CommitSession(ctx, s.ID())
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, session.StateFailed, s.State())
	assert.Equal(t, []string{"original/" + img.ID + ".png"}, f.store.paths())
}

func TestEnqueueFillsDefaultWatermark(t *testing.T) {
	f := newFixture(t)
	img := f.upload(t, 64, 48)

	s, err := f.editor.OpenSession(context.Background(), img.ID)
	require.NoError(t, err)

	_, err = f.editor.Enqueue(s.ID(), domain.NewWatermark(""))
	require.NoError(t, err)

	queue, err := f.editor.Queue(s.ID())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, domain.NewWatermark("Pik-Cha"), queue[0])
}

func TestEditorSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	img := f.upload(t, 64, 48)

	_, err := f.editor.OpenSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrImageNotFound)

	s, err := f.editor.OpenSession(context.Background(), img.ID)
	require.NoError(t, err)

	draft, err := f.editor.SetDraft(s.ID(), domain.DraftRotation, 90.0)
	require.NoError(t, err)
	assert.Equal(t, 90.0, draft.Rotation)

	draft, ok, err := f.editor.Undo(s.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, draft.Rotation)

	draft, ok, err = f.editor.Redo(s.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90.0, draft.Rotation)

	n, err := f.editor.Enqueue(s.ID(), domain.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.editor.ClearQueue(s.ID()))
	queue, err := f.editor.Queue(s.ID())
	require.NoError(t, err)
	assert.Empty(t, queue)

	cancelled, err := f.editor.CancelSession(s.ID())
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, f.editor.CloseSession(s.ID()))
	_, err = f.editor.Session(s.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubmitBatchThenWorkerCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 1024, 790)

	steps := []domain.Descriptor{
		domain.NewCrop(0, 0, 1024, 790),
		domain.NewResize(600, 800),
		domain.NewFormat(domain.FormatPNG),
	}
	submitted, err := f.images.SubmitBatch(ctx, img.ID, steps)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, submitted.Status)

	_, err = f.images.SubmitBatch(ctx, img.ID, steps)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]
	assert.Equal(t, int64(1), task.version)

	require.NoError(t, f.processor.ProcessBatch(ctx, task.imageID, task.version, task.steps))

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, domain.StatusReady, stored.Status)
	assert.Equal(t, domain.Geometry{Width: 600, Height: 800}, stored.Geometry())
}

func TestSubmitBatchRejectsInvalidSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 1024, 790)

	_, err := f.images.SubmitBatch(ctx, img.ID, []domain.Descriptor{
		domain.NewResize(600, 800),
		domain.NewCrop(0, 0, 700, 100),
	})
	var validErr *domain.ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Equal(t, domain.ReasonOutOfBounds, validErr.Reason)

	_, err = f.images.SubmitBatch(ctx, img.ID, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)

	assert.Empty(t, f.queue.tasks)
	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)
}

func TestSubmitBatchRestoresStatusWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)
	f.queue.err = assert.AnError

	_, err := f.images.SubmitBatch(ctx, img.ID, []domain.Descriptor{domain.NewFlip()})
	assert.ErrorIs(t, err, domain.ErrQueueFailed)

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)
}

func TestProcessBatchMarksStaleTaskFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)
	f.repo.bumpVersion(img.ID)

	require.NoError(t, f.processor.ProcessBatch(ctx, img.ID, 1, []domain.Descriptor{domain.NewFlip()}))

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, domain.ErrVersionConflict.Error())

	assert.NoError(t, f.processor.ProcessBatch(ctx, "missing", 1, []domain.Descriptor{domain.NewFlip()}))
}

func TestGetImageFileFallsBackToOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)

	stored, err := f.repo.FindByID(ctx, img.ID)
	require.NoError(t, err)
	stored.Path = "committed/" + img.ID + "_v2.png"
	require.NoError(t, f.repo.Create(ctx, stored))

	file, name, err := f.images.GetImageFile(ctx, img.ID, false)
	require.NoError(t, err)
	file.Close()
	assert.Equal(t, "photo.png", name)
}

func TestDeleteImageRemovesFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.upload(t, 64, 48)

	_, err := f.images.SubmitBatch(ctx, img.ID, []domain.Descriptor{domain.NewFlip()})
	require.NoError(t, err)
	task := f.queue.tasks[0]
	require.NoError(t, f.processor.ProcessBatch(ctx, task.imageID, task.version, task.steps))
	assert.Len(t, f.store.paths(), 2)

	require.NoError(t, f.images.DeleteImage(ctx, img.ID))
	assert.Empty(t, f.store.paths())

	_, err = f.images.GetImage(ctx, img.ID)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestListImagesClampsLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.upload(t, 8, 8)
	}

	images, err := f.images.ListImages(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, images, 3)

	images, err = f.images.ListImages(context.Background(), 2, -5)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}
