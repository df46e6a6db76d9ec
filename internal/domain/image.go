package domain

import (
	"time"
)

type ImageStatus string

const (
	StatusReady      ImageStatus = "ready"
	StatusProcessing ImageStatus = "processing"
	StatusFailed     ImageStatus = "failed"
)

// Geometry is the pixel size of a materialized image version.
type Geometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (g Geometry) IsZero() bool {
	return g.Width <= 0 || g.Height <= 0
}

// Image is the stored raster asset. Geometry, Format and Path change only
// when a whole transformation batch has been committed.
type Image struct {
	ID               string      `json:"id"`
	OriginalFilename string      `json:"original_filename"`
	OriginalPath     string      `json:"original_path"`
	Path             string      `json:"path"`
	Format           Format      `json:"format"`
	Size             int64       `json:"size"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	Version          int64       `json:"version"`
	Transformations  int         `json:"transformations"`
	Status           ImageStatus `json:"status"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	CommittedAt      *time.Time  `json:"committed_at,omitempty"`
}

func (i *Image) Geometry() Geometry {
	return Geometry{Width: i.Width, Height: i.Height}
}

func (i *Image) CanBeProcessed() bool {
	return i.Status != StatusProcessing
}

func (i *Image) MarkAsProcessing() {
	i.Status = StatusProcessing
	i.UpdatedAt = time.Now()
}

// Committed returns the next version of the image after a batch of steps
// produced asset at path. The receiver is not modified.
func (i Image) Committed(path string, asset Asset, steps int) Image {
	now := time.Now()
	next := i
	next.Path = path
	next.Format = asset.Format
	next.Size = int64(len(asset.Data))
	next.Width = asset.Geometry.Width
	next.Height = asset.Geometry.Height
	next.Version = i.Version + 1
	next.Transformations = i.Transformations + steps
	next.Status = StatusReady
	next.ErrorMessage = ""
	next.UpdatedAt = now
	next.CommittedAt = &now
	return next
}

// Asset is the encoded bytes of one image version together with what is
// known about them. It is what flows between pipeline steps.
type Asset struct {
	Data     []byte
	Geometry Geometry
	Format   Format
	// Quality is the encoder quality carried forward after a compress step; 0 means default.
	Quality int
}

// AppliedTransformation is one step of a committed batch as recorded in the store.
type AppliedTransformation struct {
	ImageID    string     `json:"image_id"`
	Version    int64      `json:"version"`
	Seq        int        `json:"seq"`
	Descriptor Descriptor `json:"descriptor"`
	AppliedAt  time.Time  `json:"applied_at"`
}
