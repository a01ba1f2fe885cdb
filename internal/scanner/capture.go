// Package scanner runs the packing station: it owns the camera, samples
// frames, decodes item codes and packs the item whose code matches.
package scanner

import (
	"context"
	"image"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Facing is the direction a camera points relative to the operator
type Facing string

// Facing hints. Environment facing cameras point away from the operator,
// at the item.
const (
	FacingAny         Facing = ""
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints are preferences for Acquire. Width and Height are hints; a
// source falls back to whatever format it supports.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Device is an open video stream
type Device interface {
	// Frame returns the latest frame, or ErrNoFrame when none is ready
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Source opens a Device
type Source interface {
	Name() string
	Facing() Facing
	Open(c Constraints) (Device, error)
}

// Controller hands out exclusive access to one camera at a time. Acquiring
// again releases the handle issued before.
type Controller struct {
	sources     []Source
	constraints Constraints
	logger      *zap.Logger

	acquireMu sync.Mutex
	mu        sync.Mutex
	current   *Handle
}

// NewController creates a Controller over the given sources
func NewController(constraints Constraints, logger *zap.Logger, sources ...Source) *Controller {
	return &Controller{
		sources:     sources,
		constraints: constraints,
		logger:      logger,
	}
}

// Acquire opens the best matching source. Sources facing the preferred
// direction are tried first.
func (c *Controller) Acquire(ctx context.Context) (*Handle, error) {
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	c.ReleaseAll()

	if len(c.sources) == 0 {
		return nil, ErrDeviceUnavailable
	}

	var failure error
	for _, src := range c.ordered() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dev, err := src.Open(c.constraints)
		if err != nil {
			err = classifyOpenError(src.Name(), err)
			c.logger.Debug("camera source failed", zap.String("source", src.Name()), zap.Error(err))
			if failure == nil || severity(err) > severity(failure) {
				failure = err
			}
			continue
		}

		h := &Handle{dev: dev, source: src.Name(), owner: c}
		c.mu.Lock()
		c.current = h
		c.mu.Unlock()

		c.logger.Info("camera acquired", zap.String("source", src.Name()))
		return h, nil
	}
	return nil, failure
}

// Current returns the outstanding handle, or nil
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ReleaseAll releases the outstanding handle, if any
func (c *Controller) ReleaseAll() {
	c.mu.Lock()
	h := c.current
	c.current = nil
	c.mu.Unlock()

	if h != nil {
		h.Release()
	}
}

func (c *Controller) forget(h *Handle) {
	c.mu.Lock()
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *Controller) ordered() []Source {
	sources := append([]Source(nil), c.sources...)
	if c.constraints.Facing == FacingAny {
		return sources
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Facing() == c.constraints.Facing && sources[j].Facing() != c.constraints.Facing
	})
	return sources
}

// Handle is exclusive access to an open camera stream
type Handle struct {
	dev      Device
	source   string
	owner    *Controller
	once     sync.Once
	released atomic.Bool
	closeErr error
}

// Source names the camera behind the handle
func (h *Handle) Source() string {
	return h.source
}

// Frame returns the latest frame from the stream
func (h *Handle) Frame(ctx context.Context) (image.Image, error) {
	if h.released.Load() {
		return nil, ErrHandleReleased
	}
	return h.dev.Frame(ctx)
}

// Release stops the stream. It is idempotent and safe from any goroutine.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.released.Store(true)
		h.closeErr = h.dev.Close()
		if h.owner != nil {
			h.owner.forget(h)
			if h.closeErr != nil {
				h.owner.logger.Warn("camera release failed", zap.String("source", h.source), zap.Error(h.closeErr))
			}
		}
	})
}

// Released reports whether Release has run
func (h *Handle) Released() bool {
	return h.released.Load()
}
