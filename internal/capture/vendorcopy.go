//go:build linux

package capture

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kmsgrab/kmsgrab/internal/amdgpu"
	"github.com/kmsgrab/kmsgrab/internal/drm"
	"github.com/kmsgrab/kmsgrab/internal/format"
)

// vendorCopyStrategy pulls the framebuffer through the AMDGPU SDMA
// engine into a CPU-visible staging buffer. The engine reads scanout
// memory the CPU cannot map, so this works where the generic path
// degrades.
type vendorCopyStrategy struct {
	dev *drm.Device
	log *slog.Logger
}

func newVendorCopy(dev *drm.Device, log *slog.Logger) *vendorCopyStrategy {
	return &vendorCopyStrategy{dev: dev, log: log}
}

func (s *vendorCopyStrategy) Name() string { return "vendor-copy" }

func (s *vendorCopyStrategy) Applicable(driver string, fb *drm.Framebuffer) bool {
	return driver == amdgpu.DriverName
}

func (s *vendorCopyStrategy) Attempt(fb *drm.Framebuffer) (*Result, error) {
	if len(fb.Planes) == 0 {
		return nil, fmt.Errorf("framebuffer %d has no planes", fb.ID)
	}
	info, known := format.Lookup(fb.PixelFormat)
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Name(fb.PixelFormat))
	}

	ad, err := amdgpu.Open(s.dev)
	if err != nil {
		return nil, err
	}

	w, h := int(fb.Width), int(fb.Height)
	pitch := int(fb.Planes[0].Pitch)
	if pitch == 0 {
		pitch = w * info.BytesPerPixel
	}
	copySize := uint64(pitch * h)

	srcSize, err := s.sourceSize(fb.Planes[0].Handle)
	if err != nil {
		return nil, err
	}
	if need := uint64(fb.Planes[0].Offset) + copySize; srcSize < need {
		return nil, fmt.Errorf("source BO is %d bytes, framebuffer needs %d", srcSize, need)
	}

	src, err := s.importSource(ad, fb.Planes[0].Handle, srcSize)
	if err != nil {
		return nil, err
	}
	defer src.Free()

	dst, err := ad.CreateBuffer(copySize)
	if err != nil {
		return nil, err
	}
	defer dst.Free()
	if err := dst.MapVA(); err != nil {
		return nil, err
	}
	dstData, err := dst.Map()
	if err != nil {
		return nil, err
	}

	lenDW := amdgpu.CopyIBLen(copySize)
	ib, err := ad.CreateBuffer(uint64(lenDW) * 4)
	if err != nil {
		return nil, err
	}
	defer ib.Free()
	if err := ib.MapVA(); err != nil {
		return nil, err
	}
	ibData, err := ib.Map()
	if err != nil {
		return nil, err
	}
	ibWords := unsafe.Slice((*uint32)(unsafe.Pointer(&ibData[0])), len(ibData)/4)
	amdgpu.BuildCopyIB(ibWords, src.VA+uint64(fb.Planes[0].Offset), dst.VA, copySize)

	ctx, err := ad.CreateContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Free()

	seq, err := ad.Submit(ctx, ib, lenDW, amdgpu.HWIPDMA,
		[]uint32{src.Handle, dst.Handle, ib.Handle})
	if err != nil {
		return nil, err
	}
	if err := ad.WaitIdle(ctx, seq, amdgpu.HWIPDMA); err != nil {
		return nil, err
	}

	rgb := format.ToRGB24(dstData, w, h, pitch, fb.PixelFormat)
	res := &Result{Width: w, Height: h, Pix: rgb}
	if fb.Modifier != format.ModLinear {
		// The SDMA copy is byte-exact, so tiling survives into the
		// output; readable, but not a faithful screenshot.
		res.Degraded = true
		res.Note = "tiled source copied without deswizzle"
	}
	return res, nil
}

// importSource brings the scanout BO into the GPU VA space, trying two
// exchange mechanisms in order: the handle from the framebuffer query
// directly, then a PRIME export and re-import for kernels that refuse
// VA mapping on foreign scanout handles.
func (s *vendorCopyStrategy) importSource(ad *amdgpu.Device, handle uint32, size uint64) (*amdgpu.BO, error) {
	src := ad.WrapHandle(handle, size)
	directErr := src.MapVA()
	if directErr == nil {
		return src, nil
	}

	fd, err := s.dev.PrimeHandleToFD(handle, unix.O_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("map scanout BO: %w (prime export: %v)", directErr, err)
	}
	defer unix.Close(fd)
	imported, err := s.dev.PrimeFDToHandle(fd)
	if err != nil {
		return nil, fmt.Errorf("map scanout BO: %w (prime import: %v)", directErr, err)
	}
	s.log.Debug("direct VA map failed, imported via prime", "error", directErr)

	src = ad.WrapHandle(imported, size)
	if err := src.MapVA(); err != nil {
		return nil, fmt.Errorf("map prime-imported BO: %w", err)
	}
	return src, nil
}

// sourceSize learns the scanout BO size via a PRIME export; the
// framebuffer query only reports pitch and offset.
func (s *vendorCopyStrategy) sourceSize(handle uint32) (uint64, error) {
	fd, err := s.dev.PrimeHandleToFD(handle, unix.O_CLOEXEC)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	size, err := unix.Seek(fd, 0, unix.SEEK_END)
	if err != nil {
		return 0, fmt.Errorf("query dma-buf size: %w", err)
	}
	return uint64(size), nil
}
