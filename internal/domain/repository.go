package domain

import "context"

type ImageRepository interface {
	Create(ctx context.Context, image *Image) error
	FindByID(ctx context.Context, id string) (*Image, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Image, error)
	UpdateStatus(ctx context.Context, id string, status ImageStatus, errMsg string) error
	// UpdateCommitted stores image as the new baseline together with the steps
	// that produced it. It fails with ErrVersionConflict unless the stored
	// version still equals expectedVersion.
	UpdateCommitted(ctx context.Context, image *Image, expectedVersion int64, steps []Descriptor) error
	Transformations(ctx context.Context, id string) ([]AppliedTransformation, error)
}
