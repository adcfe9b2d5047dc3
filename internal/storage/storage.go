// Package storage persists generated images and returns displayable references.
package storage

import (
	"context"
	"errors"
)

// ErrArtifactExists is returned when a name is already taken. Artifacts are
// never overwritten.
var ErrArtifactExists = errors.New("artifact already exists")

// ArtifactStore writes one artifact and returns a reference to it.
type ArtifactStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}
