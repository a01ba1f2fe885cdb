package scanner

import (
	"context"
	"errors"
	"image"
	"image/draw"

	"golang.org/x/time/rate"
)

// DefaultFPS is the sampling rate when none is configured
const DefaultFPS = 15

// FrameFunc handles one sampled frame. The buffer is reused by the next
// tick and must not be retained.
type FrameFunc func(ctx context.Context, frame *image.RGBA) error

// Sampler drives a cooperative sampling loop. Each tick runs to completion
// before the next is scheduled, so ticks never overlap.
type Sampler struct {
	limiter *rate.Limiter
	buf     *image.RGBA
}

// NewSampler creates a Sampler pacing ticks at fps
func NewSampler(fps float64) *Sampler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Sampler{limiter: rate.NewLimiter(rate.Limit(fps), 1)}
}

// Run samples h until active reports false, fn returns an error, or ctx
// ends. active is checked before every tick; stopping never interrupts a
// tick in progress.
func (s *Sampler) Run(ctx context.Context, h *Handle, active func() bool, fn FrameFunc) error {
	for active() {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if !active() {
			return nil
		}

		frame, err := h.Frame(ctx)
		if errors.Is(err, ErrNoFrame) {
			continue
		}
		if err != nil {
			return err
		}

		if err := fn(ctx, s.copyFrame(frame)); err != nil {
			return err
		}
	}
	return nil
}

// copyFrame draws frame into the reused off-screen buffer
func (s *Sampler) copyFrame(frame image.Image) *image.RGBA {
	b := frame.Bounds()
	if s.buf == nil || s.buf.Bounds().Dx() != b.Dx() || s.buf.Bounds().Dy() != b.Dy() {
		s.buf = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(s.buf, s.buf.Bounds(), frame, b.Min, draw.Src)
	return s.buf
}
