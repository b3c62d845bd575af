//go:build linux

package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/kmsgrab/kmsgrab/internal/drm"
	"github.com/kmsgrab/kmsgrab/internal/format"
)

// genericStrategy copies through a CPU-mapped dumb buffer. It works on
// any driver; when the source cannot be mapped it degrades to a
// synthetic gradient instead of failing.
type genericStrategy struct {
	dev *drm.Device
	log *slog.Logger
}

func newGeneric(dev *drm.Device, log *slog.Logger) *genericStrategy {
	return &genericStrategy{dev: dev, log: log}
}

func (s *genericStrategy) Name() string { return "generic" }

func (s *genericStrategy) Applicable(driver string, fb *drm.Framebuffer) bool {
	return true
}

func (s *genericStrategy) Attempt(fb *drm.Framebuffer) (*Result, error) {
	if len(fb.Planes) == 0 {
		return nil, fmt.Errorf("framebuffer %d has no planes", fb.ID)
	}
	w, h := int(fb.Width), int(fb.Height)

	if capVal, err := s.dev.GetCap(drm.CapDumbBuffer); err != nil {
		return nil, err
	} else if capVal == 0 {
		return nil, errors.New("device lacks dumb buffer support")
	}

	dumb, err := s.dev.CreateDumb(fb.Width, fb.Height, 32)
	if err != nil {
		return nil, err
	}
	defer dumb.Destroy()
	dst, err := dumb.Map()
	if err != nil {
		return nil, err
	}

	mapped, srcOff, err := s.mapSource(fb)
	if err != nil {
		// Tiled or non-exportable sources land here; a gradient is
		// still more useful to the caller than a hard failure.
		s.log.Debug("source not CPU-mappable", "error", err)
		fillGradient(dst, w, h, int(dumb.Pitch))
		rgb := format.ToRGB24(dst, w, h, int(dumb.Pitch), format.ARGB8888)
		return &Result{
			Width: w, Height: h, Pix: rgb,
			Degraded: true,
			Note:     "source buffer not mappable; wrote test pattern",
		}, nil
	}
	defer unix.Munmap(mapped)
	src := mapped[srcOff:]

	info, known := format.Lookup(fb.PixelFormat)
	srcPitch := int(fb.Planes[0].Pitch)
	outFormat := fb.PixelFormat
	if known && info.HDR {
		// Narrow 16-bit channels to 8 while copying; downstream
		// conversion then sees plain ARGB8888.
		narrowRows(dst, src, w, h, int(dumb.Pitch), srcPitch)
		outFormat = format.ARGB8888
	} else {
		copyRows(dst, src, h, int(dumb.Pitch), srcPitch)
	}

	rgb := format.ToRGB24(dst, w, h, int(dumb.Pitch), outFormat)
	return &Result{Width: w, Height: h, Pix: rgb}, nil
}

// mapSource exports plane 0 as a DMA-BUF and maps it read-only.
func (s *genericStrategy) mapSource(fb *drm.Framebuffer) ([]byte, int, error) {
	fd, err := s.dev.PrimeHandleToFD(fb.Planes[0].Handle, unix.O_CLOEXEC)
	if err != nil {
		return nil, 0, err
	}
	defer unix.Close(fd)

	size, err := unix.Seek(fd, 0, unix.SEEK_END)
	if err != nil || size <= 0 {
		return nil, 0, fmt.Errorf("query dma-buf size: %v", err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("mmap dma-buf: %w", err)
	}
	return data, int(fb.Planes[0].Offset), nil
}

// copyRows copies the source row by row. The pitch the kernel reports
// and the dma-buf size can disagree, so copies are clamped to the
// bytes actually mapped rather than trusted.
func copyRows(dst, src []byte, h, dstPitch, srcPitch int) {
	rowBytes := min(dstPitch, srcPitch)
	for y := 0; y < h; y++ {
		off := y * srcPitch
		if off >= len(src) {
			return
		}
		n := min(rowBytes, len(src)-off)
		copy(dst[y*dstPitch:y*dstPitch+n], src[off:off+n])
	}
}

// narrowRows converts ABGR16161616 rows to ARGB8888 in place of a
// plain copy, keeping the high byte of each 16-bit channel. Pixels
// past the end of the mapped source are left untouched.
func narrowRows(dst, src []byte, w, h, dstPitch, srcPitch int) {
	for y := 0; y < h; y++ {
		off := y * srcPitch
		if off >= len(src) {
			return
		}
		sRow := src[off:]
		dRow := dst[y*dstPitch:]
		for x := 0; x < w; x++ {
			if (x+1)*8 > len(sRow) {
				break
			}
			r := sRow[x*8+1]
			g := sRow[x*8+3]
			b := sRow[x*8+5]
			dRow[x*4+0] = b
			dRow[x*4+1] = g
			dRow[x*4+2] = r
			dRow[x*4+3] = 0xff
		}
	}
}

// fillGradient writes the fallback test pattern: red rises left to
// right, green top to bottom, constant half blue.
func fillGradient(dst []byte, w, h, pitch int) {
	for y := 0; y < h; y++ {
		row := dst[y*pitch:]
		g := byte(y * 255 / h)
		for x := 0; x < w; x++ {
			// BGRA in memory, so blue first.
			row[x*4+0] = 128
			row[x*4+1] = g
			row[x*4+2] = byte(x * 255 / w)
			row[x*4+3] = 0xff
		}
	}
}
