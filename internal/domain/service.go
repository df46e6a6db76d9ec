package domain

import (
	"context"
	"io"
)

type ImageService interface {
	UploadImage(ctx context.Context, filename string, size int64, reader io.Reader) (*Image, error)
	GetImage(ctx context.Context, id string) (*Image, error)
	GetImageFile(ctx context.Context, id string, useOriginal bool) (io.ReadCloser, string, error)
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context, limit, offset int) ([]*Image, error)
	ListTransformations(ctx context.Context, id string) ([]AppliedTransformation, error)
	SubmitBatch(ctx context.Context, id string, steps []Descriptor) (*Image, error)
}

type ProcessorService interface {
	ProcessBatch(ctx context.Context, imageID string, version int64, steps []Descriptor) error
}

type QueueService interface {
	PublishTransformTask(ctx context.Context, imageID string, version int64, steps []Descriptor) error
	Close() error
}
