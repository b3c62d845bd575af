//go:build linux

package drm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nrModeCreateDumb  = 0xb2
	nrModeMapDumb     = 0xb3
	nrModeDestroyDumb = 0xb4
)

// Device capabilities for GetCap.
const (
	CapDumbBuffer  = 0x1
	CapPrime       = 0x5
	CapPrimeImport = 0x1
	CapPrimeExport = 0x2
)

type getCapArg struct {
	Capability uint64
	Value      uint64
}

// GetCap queries a device capability such as CapDumbBuffer or CapPrime.
func (d *Device) GetCap(capability uint64) (uint64, error) {
	arg := getCapArg{Capability: capability}
	req := IOWR(nrGetCap, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("drm: get cap %d: %w", capability, err)
	}
	return arg.Value, nil
}

type createDumbArg struct {
	Height uint32
	Width  uint32
	BPP    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type mapDumbArg struct {
	Handle uint32
	_      uint32
	Offset uint64
}

type destroyDumbArg struct {
	Handle uint32
}

// DumbBuffer is a kernel-allocated linear buffer, CPU-mappable through
// the device fd.
type DumbBuffer struct {
	dev    *Device
	Handle uint32
	Pitch  uint32
	Size   uint64
	data   []byte
}

// CreateDumb allocates a dumb buffer of the given dimensions.
func (d *Device) CreateDumb(width, height, bpp uint32) (*DumbBuffer, error) {
	arg := createDumbArg{Width: width, Height: height, BPP: bpp}
	req := IOWR(nrModeCreateDumb, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("drm: create dumb %dx%d@%d: %w", width, height, bpp, err)
	}
	return &DumbBuffer{dev: d, Handle: arg.Handle, Pitch: arg.Pitch, Size: arg.Size}, nil
}

// Map maps the buffer into the process and returns its bytes. The
// mapping stays valid until Destroy.
func (b *DumbBuffer) Map() ([]byte, error) {
	if b.data != nil {
		return b.data, nil
	}
	arg := mapDumbArg{Handle: b.Handle}
	req := IOWR(nrModeMapDumb, unsafe.Sizeof(arg))
	if err := Ioctl(b.dev.fd, req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("drm: map dumb handle %d: %w", b.Handle, err)
	}
	data, err := unix.Mmap(b.dev.fd, int64(arg.Offset), int(b.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("drm: mmap dumb handle %d: %w", b.Handle, err)
	}
	b.data = data
	return data, nil
}

// Destroy unmaps and frees the buffer.
func (b *DumbBuffer) Destroy() {
	if b.data != nil {
		unix.Munmap(b.data)
		b.data = nil
	}
	if b.Handle != 0 {
		arg := destroyDumbArg{Handle: b.Handle}
		req := IOWR(nrModeDestroyDumb, unsafe.Sizeof(arg))
		Ioctl(b.dev.fd, req, unsafe.Pointer(&arg))
		b.Handle = 0
	}
}
