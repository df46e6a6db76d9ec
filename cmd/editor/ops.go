package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// loadOps reads a batch file. Both a bare array of descriptors and an object
// with a "transformations" array are accepted.
func loadOps(path, watermark string) ([]domain.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ops: %w", err)
	}
	steps, err := parseOps(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, d := range steps {
		if p, ok := d.Params().(domain.WatermarkParams); ok && p.Text == "" && watermark != "" {
			p.Text = watermark
			steps[i] = domain.NewDescriptor(p)
		}
	}
	return steps, nil
}

func parseOps(data []byte) ([]domain.Descriptor, error) {
	data = bytes.TrimSpace(data)
	var steps []domain.Descriptor
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &steps); err != nil {
			return nil, err
		}
	} else {
		var batch struct {
			Transformations []domain.Descriptor `json:"transformations"`
		}
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		steps = batch.Transformations
	}
	if len(steps) == 0 {
		return nil, domain.ErrEmptyQueue
	}
	return steps, nil
}
