//go:build linux

package drm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nrModeGetPlaneResources = 0xb5
	nrModeGetPlane          = 0xb6
	nrModeGetFB             = 0xad
	nrModeGetFB2            = 0xce
)

// ErrNoFramebuffer reports that no plane on the device currently scans
// out a framebuffer.
var ErrNoFramebuffer = errors.New("drm: no active framebuffer found")

// Plane is one hardware scanout plane.
type Plane struct {
	ID   uint32
	CRTC uint32
	FBID uint32
}

type getPlaneResArg struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32
}

type getPlaneArg struct {
	PlaneID          uint32
	CRTCID           uint32
	FBID             uint32
	PossibleCRTCs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

// Planes enumerates all planes on the device. Callers should enable
// ClientCapUniversalPlanes first so primary planes are included.
func (d *Device) Planes() ([]Plane, error) {
	var res getPlaneResArg
	resReq := IOWR(nrModeGetPlaneResources, unsafe.Sizeof(res))
	if err := Ioctl(d.fd, resReq, unsafe.Pointer(&res)); err != nil {
		return nil, fmt.Errorf("drm: get plane resources: %w", err)
	}
	if res.CountPlanes == 0 {
		return nil, nil
	}

	ids := make([]uint32, res.CountPlanes)
	res.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	if err := Ioctl(d.fd, resReq, unsafe.Pointer(&res)); err != nil {
		return nil, fmt.Errorf("drm: get plane resources: %w", err)
	}
	ids = ids[:res.CountPlanes]

	planes := make([]Plane, 0, len(ids))
	planeReq := IOWR(nrModeGetPlane, unsafe.Sizeof(getPlaneArg{}))
	for _, id := range ids {
		arg := getPlaneArg{PlaneID: id}
		if err := Ioctl(d.fd, planeReq, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("drm: get plane %d: %w", id, err)
		}
		planes = append(planes, Plane{ID: id, CRTC: arg.CRTCID, FBID: arg.FBID})
	}
	return planes, nil
}

const maxFBPlanes = 4

type fbCmd2 struct {
	FBID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [maxFBPlanes]uint32
	Pitches     [maxFBPlanes]uint32
	Offsets     [maxFBPlanes]uint32
	Modifier    [maxFBPlanes]uint64
}

type fbCmd struct {
	FBID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	BPP    uint32
	Depth  uint32
	Handle uint32
}

// FBPlane is one memory plane of a framebuffer.
type FBPlane struct {
	Handle uint32
	Pitch  uint32
	Offset uint32
}

// Framebuffer describes a scanout buffer as reported by the kernel.
// Handles are GEM handles owned by the querying fd; release them with
// ReleaseFramebuffer when done.
type Framebuffer struct {
	ID          uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Modifier    uint64
	Planes      []FBPlane
}

// Framebuffer queries a framebuffer by ID using GETFB2, which exposes
// the pixel format and tiling modifier. Falls back to the legacy GETFB
// on kernels without GETFB2 support, reporting XRGB8888 and a linear
// modifier.
func (d *Device) Framebuffer(id uint32) (*Framebuffer, error) {
	arg := fbCmd2{FBID: id}
	req := IOWR(nrModeGetFB2, unsafe.Sizeof(arg))
	err := Ioctl(d.fd, req, unsafe.Pointer(&arg))
	if err == nil {
		fb := &Framebuffer{
			ID:          arg.FBID,
			Width:       arg.Width,
			Height:      arg.Height,
			PixelFormat: arg.PixelFormat,
			Modifier:    arg.Modifier[0],
		}
		for i := 0; i < maxFBPlanes && arg.Handles[i] != 0; i++ {
			fb.Planes = append(fb.Planes, FBPlane{
				Handle: arg.Handles[i],
				Pitch:  arg.Pitches[i],
				Offset: arg.Offsets[i],
			})
		}
		return fb, nil
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EINVAL) {
		return nil, fmt.Errorf("drm: getfb2 %d: %w", id, err)
	}

	legacy := fbCmd{FBID: id}
	legacyReq := IOWR(nrModeGetFB, unsafe.Sizeof(legacy))
	if err := Ioctl(d.fd, legacyReq, unsafe.Pointer(&legacy)); err != nil {
		return nil, fmt.Errorf("drm: getfb %d: %w", id, err)
	}
	return &Framebuffer{
		ID:          legacy.FBID,
		Width:       legacy.Width,
		Height:      legacy.Height,
		PixelFormat: legacyFormat(legacy.BPP, legacy.Depth),
		Planes: []FBPlane{{
			Handle: legacy.Handle,
			Pitch:  legacy.Pitch,
		}},
	}, nil
}

// legacyFormat guesses a fourcc from the bpp/depth pair the legacy
// GETFB reports.
func legacyFormat(bpp, depth uint32) uint32 {
	switch {
	case bpp == 16:
		return fourcc('R', 'G', '1', '6')
	case bpp == 32 && depth == 30:
		return fourcc('X', 'R', '3', '0')
	default:
		return fourcc('X', 'R', '2', '4')
	}
}

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// ReleaseFramebuffer closes the GEM handles a Framebuffer query handed
// out. Handles shared between planes are closed once.
func (d *Device) ReleaseFramebuffer(fb *Framebuffer) {
	seen := make(map[uint32]bool, len(fb.Planes))
	for _, p := range fb.Planes {
		if p.Handle == 0 || seen[p.Handle] {
			continue
		}
		seen[p.Handle] = true
		d.GemClose(p.Handle)
	}
}

// ActiveFramebuffer scans all planes and returns the framebuffer with
// the largest area, which on a desktop is the primary scanout surface.
// Returns ErrNoFramebuffer when nothing is being displayed.
func (d *Device) ActiveFramebuffer() (*Framebuffer, error) {
	planes, err := d.Planes()
	if err != nil {
		return nil, err
	}
	return pickActive(planes, d.Framebuffer, d.ReleaseFramebuffer)
}

// pickActive selects the bound framebuffer with the strictly largest
// area; ties keep the earlier plane. Unbound and unreadable planes are
// skipped, losing candidates are released immediately.
func pickActive(planes []Plane, lookup func(uint32) (*Framebuffer, error), release func(*Framebuffer)) (*Framebuffer, error) {
	var best *Framebuffer
	for _, p := range planes {
		if p.FBID == 0 {
			continue
		}
		fb, err := lookup(p.FBID)
		if err != nil {
			continue
		}
		if best == nil || fb.Width*fb.Height > best.Width*best.Height {
			if best != nil {
				release(best)
			}
			best = fb
		} else {
			release(fb)
		}
	}
	if best == nil {
		return nil, ErrNoFramebuffer
	}
	return best, nil
}
