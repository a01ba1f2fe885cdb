//go:build !linux

package scanner

import (
	"fmt"

	"go.uber.org/zap"
)

// V4L2Source is only backed by hardware on linux
type V4L2Source struct {
	path   string
	facing Facing
}

// NewV4L2Source creates a source that reports no camera
func NewV4L2Source(path string, facing Facing, _ *zap.Logger) *V4L2Source {
	return &V4L2Source{path: path, facing: facing}
}

// Name implements Source
func (s *V4L2Source) Name() string { return s.path }

// Facing implements Source
func (s *V4L2Source) Facing() Facing { return s.facing }

// Open implements Source
func (s *V4L2Source) Open(Constraints) (Device, error) {
	return nil, fmt.Errorf("%w: video4linux is not available on this platform", ErrDeviceUnavailable)
}
