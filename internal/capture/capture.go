//go:build linux

// Package capture turns a scanned-out DRM framebuffer into packed RGB
// pixels. Three strategies are tried in order of fidelity: a Vulkan
// deswizzle pass for tiled buffers, an AMDGPU SDMA engine copy, and a
// CPU dumb-buffer path that degrades to a test pattern when the source
// cannot be mapped.
package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kmsgrab/kmsgrab/internal/drm"
	"github.com/kmsgrab/kmsgrab/internal/format"
	"github.com/kmsgrab/kmsgrab/internal/logging"
	"github.com/kmsgrab/kmsgrab/internal/tonemap"
)

// ErrUnsupportedFormat reports a framebuffer pixel format outside the
// catalog.
var ErrUnsupportedFormat = errors.New("capture: unsupported pixel format")

// ErrAllStrategiesFailed reports that every applicable strategy was
// tried and none produced an image.
var ErrAllStrategiesFailed = errors.New("capture: all strategies failed")

// Result is a captured frame as packed 8-bit RGB.
type Result struct {
	Width  int
	Height int
	Pix    []byte // Width*Height*3 bytes

	// Degraded marks a synthetic or lossy image produced because the
	// real pixels were unreachable; still a success for the caller.
	Degraded bool
	Note     string
}

// Strategy is one way of getting pixels out of a framebuffer.
type Strategy interface {
	Name() string
	// Applicable reports whether the strategy can work on this
	// driver/framebuffer combination, before any resources are spent.
	Applicable(driver string, fb *drm.Framebuffer) bool
	Attempt(fb *drm.Framebuffer) (*Result, error)
}

// Orchestrator owns the device for the duration of a capture and walks
// the strategy list until one produces a Result.
type Orchestrator struct {
	dev        *drm.Device
	driver     string
	strategies []Strategy
	log        *slog.Logger
}

// New builds an Orchestrator with the standard strategy order.
func New(dev *drm.Device, params tonemap.Params) (*Orchestrator, error) {
	ver, err := dev.Version()
	if err != nil {
		return nil, err
	}
	log := logging.L("capture")
	return &Orchestrator{
		dev:    dev,
		driver: ver.Name,
		strategies: []Strategy{
			newDeswizzle(dev, params, log),
			newVendorCopy(dev, log),
			newGeneric(dev, log),
		},
		log: log,
	}, nil
}

// Run captures framebuffer fbID; 0 selects the largest active
// framebuffer on the device.
func (o *Orchestrator) Run(fbID uint32) (*Result, error) {
	var fb *drm.Framebuffer
	var err error
	if fbID == 0 {
		fb, err = o.dev.ActiveFramebuffer()
	} else {
		fb, err = o.dev.Framebuffer(fbID)
	}
	if err != nil {
		return nil, err
	}
	defer o.dev.ReleaseFramebuffer(fb)

	o.log.Info("capturing framebuffer",
		"fb", fb.ID, "width", fb.Width, "height", fb.Height,
		"format", format.Name(fb.PixelFormat), "modifier", fmt.Sprintf("%#x", fb.Modifier))
	return o.attempt(fb)
}

// attempt walks the strategy list. Failures fall through with a log
// line; the aggregate error is returned only when nothing succeeds.
func (o *Orchestrator) attempt(fb *drm.Framebuffer) (*Result, error) {
	var errs []error
	for _, s := range o.strategies {
		if !s.Applicable(o.driver, fb) {
			o.log.Debug("strategy not applicable", logging.KeyStrategy, s.Name())
			continue
		}
		res, err := s.Attempt(fb)
		if err != nil {
			o.log.Warn("strategy failed, falling back", logging.KeyStrategy, s.Name(), logging.KeyError, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if res.Degraded {
			o.log.Warn("degraded capture", logging.KeyStrategy, s.Name(), "note", res.Note)
		} else {
			o.log.Info("capture complete", logging.KeyStrategy, s.Name())
		}
		return res, nil
	}
	if len(errs) == 0 {
		return nil, ErrAllStrategiesFailed
	}
	return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(errs...))
}
