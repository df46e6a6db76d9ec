package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlaveDSNs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  ", nil},
		{"single", "postgres://replica-1/db", []string{"postgres://replica-1/db"}},
		{"trims and skips", " postgres://a/db , ,postgres://b/db ", []string{"postgres://a/db", "postgres://b/db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slaveDSNs(tt.in))
		})
	}
}
