package images

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLister struct{}

func (failingLister) List(ctx context.Context) ([]string, error) {
	return nil, errors.New("daemon unreachable")
}

func TestExists(t *testing.T) {
	listed := StaticLister{
		"images_core:latest",
		"postgres:9.6",
		"sha256:4f1c2a",
	}

	tests := []struct {
		name   string
		lookup string
		want   bool
	}{
		{"exact match", "postgres:9.6", true},
		{"substring match", "images_core", true},
		{"id prefix", "sha256:4f1c", true},
		{"no match", "images_api", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Exists(context.Background(), listed, tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExists_EmptyList(t *testing.T) {
	got, err := Exists(context.Background(), StaticLister(nil), "images_api")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestExists_ListFailure(t *testing.T) {
	_, err := Exists(context.Background(), failingLister{}, "images_api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon unreachable")
}
