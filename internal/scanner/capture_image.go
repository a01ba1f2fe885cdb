package scanner

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"
)

// ImageSource serves a fixed picture as if it were a camera. The scanner
// CLI uses it for --image and tests use it in place of hardware.
type ImageSource struct {
	name   string
	facing Facing
	load   func() (image.Image, error)
}

// NewImageSource wraps an in-memory image
func NewImageSource(name string, facing Facing, img image.Image) *ImageSource {
	return &ImageSource{
		name:   name,
		facing: facing,
		load:   func() (image.Image, error) { return img, nil },
	}
}

// NewImageFileSource reads a PNG or JPEG file each time it is opened
func NewImageFileSource(path string) *ImageSource {
	return &ImageSource{
		name:   path,
		facing: FacingEnvironment,
		load: func() (image.Image, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()

			img, _, err := image.Decode(f)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
			return img, nil
		},
	}
}

// Name implements Source
func (s *ImageSource) Name() string { return s.name }

// Facing implements Source
func (s *ImageSource) Facing() Facing { return s.facing }

// Open implements Source
func (s *ImageSource) Open(Constraints) (Device, error) {
	img, err := s.load()
	if err != nil {
		return nil, err
	}
	return &imageDevice{img: img}, nil
}

type imageDevice struct {
	img    image.Image
	closed atomic.Bool
}

func (d *imageDevice) Frame(ctx context.Context) (image.Image, error) {
	if d.closed.Load() {
		return nil, ErrHandleReleased
	}
	return d.img, nil
}

func (d *imageDevice) Close() error {
	d.closed.Store(true)
	return nil
}
