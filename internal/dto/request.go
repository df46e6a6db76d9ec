package dto

import (
	"encoding/json"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// TransformRequest is the body of POST /image/:id/transform.
type TransformRequest struct {
	Transformations []domain.Descriptor `json:"transformations" binding:"required,min=1"`
}

// TransformTask is the kafka message consumed by the worker. Version is the
// image version the batch was validated against.
type TransformTask struct {
	ImageID         string              `json:"image_id"`
	Version         int64               `json:"version"`
	Transformations []domain.Descriptor `json:"transformations"`
}

type OpenSessionRequest struct {
	ImageID string `json:"image_id" binding:"required"`
}

// DraftChangeRequest sets one draft field; Value is decoded per field.
type DraftChangeRequest struct {
	Field string          `json:"field" binding:"required"`
	Value json.RawMessage `json:"value" binding:"required"`
}

// DecodeValue returns the value as a bool, float64 or string depending on its JSON type.
func (r *DraftChangeRequest) DecodeValue() (any, error) {
	var v any
	if err := json.Unmarshal(r.Value, &v); err != nil {
		return nil, err
	}
	return v, nil
}
