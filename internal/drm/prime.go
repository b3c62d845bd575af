//go:build linux

package drm

import (
	"fmt"
	"unsafe"
)

type primeHandleArg struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

type gemCloseArg struct {
	Handle uint32
	_      uint32
}

// PrimeHandleToFD exports a GEM handle as a DMA-BUF file descriptor.
// The caller owns the returned fd.
func (d *Device) PrimeHandleToFD(handle, flags uint32) (int, error) {
	arg := primeHandleArg{Handle: handle, Flags: flags}
	req := IOWR(nrPrimeToFD, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return -1, fmt.Errorf("drm: prime export handle %d: %w", handle, err)
	}
	return int(arg.FD), nil
}

// PrimeFDToHandle imports a DMA-BUF fd as a GEM handle on this device.
func (d *Device) PrimeFDToHandle(fd int) (uint32, error) {
	arg := primeHandleArg{FD: int32(fd)}
	req := IOWR(nrPrimeToHandle, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("drm: prime import fd %d: %w", fd, err)
	}
	return arg.Handle, nil
}

// GemClose drops a GEM handle reference. Errors are ignored; a stale
// handle cannot be meaningfully recovered at close time.
func (d *Device) GemClose(handle uint32) {
	arg := gemCloseArg{Handle: handle}
	req := IOW(nrGemClose, unsafe.Sizeof(arg))
	Ioctl(d.fd, req, unsafe.Pointer(&arg))
}
