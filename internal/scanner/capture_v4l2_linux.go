//go:build linux

package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"
	"go.uber.org/zap"
)

const (
	fourccMJPEG webcam.PixelFormat = 0x47504A4D
	fourccYUYV  webcam.PixelFormat = 0x56595559

	frameWaitSeconds = 1
)

// V4L2Source opens a Video4Linux device node such as /dev/video0
type V4L2Source struct {
	path   string
	facing Facing
	logger *zap.Logger
}

// NewV4L2Source creates a source for the device at path
func NewV4L2Source(path string, facing Facing, logger *zap.Logger) *V4L2Source {
	return &V4L2Source{path: path, facing: facing, logger: logger}
}

// Name implements Source
func (s *V4L2Source) Name() string { return s.path }

// Facing implements Source
func (s *V4L2Source) Facing() Facing { return s.facing }

// Open negotiates MJPEG, or YUYV when the device has no MJPEG, at the size
// closest to the constraint and starts streaming
func (s *V4L2Source) Open(c Constraints) (Device, error) {
	cam, err := webcam.Open(s.path)
	if err != nil {
		return nil, err
	}

	format, ok := pickFormat(cam.GetSupportedFormats())
	if !ok {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: %s offers neither MJPEG nor YUYV", ErrDeviceUnavailable, s.path)
	}

	width, height := c.Width, c.Height
	if w, h, ok := closestSize(frameSizes(cam.GetSupportedFrameSizes(format), c), c.Width, c.Height); ok {
		width, height = w, h
	}

	format, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height))
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("set format on %s: %w", s.path, err)
	}

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, err
	}

	s.logger.Debug("v4l2 stream started",
		zap.String("device", s.path),
		zap.Uint32("width", w),
		zap.Uint32("height", h),
		zap.Bool("mjpeg", format == fourccMJPEG),
	)
	return &v4l2Device{cam: cam, format: format, width: int(w), height: int(h)}, nil
}

func pickFormat(formats map[webcam.PixelFormat]string) (webcam.PixelFormat, bool) {
	for _, f := range []webcam.PixelFormat{fourccMJPEG, fourccYUYV} {
		if _, ok := formats[f]; ok {
			return f, true
		}
	}
	return 0, false
}

// frameSizes flattens discrete and stepwise ranges. A stepwise range
// contributes the requested size clamped into the range.
func frameSizes(sizes []webcam.FrameSize, c Constraints) [][2]int {
	out := make([][2]int, 0, len(sizes))
	for _, s := range sizes {
		if s.MinWidth == s.MaxWidth && s.MinHeight == s.MaxHeight {
			out = append(out, [2]int{int(s.MaxWidth), int(s.MaxHeight)})
			continue
		}
		out = append(out, [2]int{
			clamp(c.Width, int(s.MinWidth), int(s.MaxWidth)),
			clamp(c.Height, int(s.MinHeight), int(s.MaxHeight)),
		})
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type v4l2Device struct {
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
}

func (d *v4l2Device) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := d.cam.WaitForFrame(frameWaitSeconds)
	var timeout *webcam.Timeout
	switch {
	case errors.As(err, &timeout):
		return nil, ErrNoFrame
	case err != nil:
		return nil, err
	}

	frame, err := d.cam.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, ErrNoFrame
	}

	if d.format == fourccMJPEG {
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			// a torn MJPEG frame is skipped, not fatal
			return nil, ErrNoFrame
		}
		return img, nil
	}
	return yuyvToImage(frame, d.width, d.height)
}

func (d *v4l2Device) Close() error {
	stopErr := d.cam.StopStreaming()
	return errors.Join(stopErr, d.cam.Close())
}
