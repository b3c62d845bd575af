//go:build linux

// Package amdgpu binds the amdgpu driver-private ioctls needed to copy
// tiled scanout memory with the SDMA engine: buffer objects, GPU
// virtual address mapping, command submission and fence waits.
package amdgpu

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/kmsgrab/kmsgrab/internal/drm"
)

// DriverName is the kernel driver this package talks to.
const DriverName = "amdgpu"

const (
	nrGemCreate = 0x00
	nrGemMmap   = 0x01
	nrCtx       = 0x02
	nrBOList    = 0x03
	nrCS        = 0x04
	nrInfo      = 0x05
	nrGemVA     = 0x08
	nrWaitCS    = 0x09
)

const (
	infoQueryDevInfo = 0x16

	vaPageSize = 4096
)

type infoArg struct {
	ReturnPointer uint64
	ReturnSize    uint32
	Query         uint32
	// query-specific input, unused for dev info
	_ [16]byte
}

// devInfo is a prefix of the kernel's drm_amdgpu_info_device; the
// kernel copies at most ReturnSize bytes, so trailing fields can be
// omitted.
type devInfo struct {
	DeviceID                uint32
	ChipRev                 uint32
	ExternalRev             uint32
	PCIRev                  uint32
	Family                  uint32
	NumShaderEngines        uint32
	NumShaderArraysPerSE    uint32
	GPUCounterFreq          uint32
	MaxEngineClock          uint64
	MaxMemoryClock          uint64
	CUActiveNumber          uint32
	CUAOMask                uint32
	CUBitmap                [4][4]uint32
	EnabledRBPipesMask      uint32
	NumRBPipes              uint32
	NumHWGfxContexts        uint32
	PCIeGen                 uint32
	IDSFlags                uint64
	VirtualAddressOffset    uint64
	VirtualAddressMax       uint64
	VirtualAddressAlignment uint32
	_                       uint32
}

// Device wraps an amdgpu DRM device with a process-local GPU virtual
// address allocator.
type Device struct {
	drm *drm.Device

	mu     sync.Mutex
	vaNext uint64
	vaMax  uint64
}

// Open verifies the device node is driven by amdgpu and queries the
// usable GPU virtual address range.
func Open(d *drm.Device) (*Device, error) {
	ver, err := d.Version()
	if err != nil {
		return nil, err
	}
	if ver.Name != DriverName {
		return nil, fmt.Errorf("amdgpu: device %s is driven by %q, not %s",
			d.Path(), ver.Name, DriverName)
	}

	var info devInfo
	arg := infoArg{
		ReturnPointer: uint64(uintptr(unsafe.Pointer(&info))),
		ReturnSize:    uint32(unsafe.Sizeof(info)),
		Query:         infoQueryDevInfo,
	}
	req := drm.IOW(drm.CommandBase+nrInfo, unsafe.Sizeof(arg))
	err = drm.Ioctl(d.FD(), req, unsafe.Pointer(&arg))
	runtime.KeepAlive(&info)
	if err != nil {
		return nil, fmt.Errorf("amdgpu: query device info: %w", err)
	}
	if info.VirtualAddressMax <= info.VirtualAddressOffset {
		return nil, fmt.Errorf("amdgpu: kernel reported empty VA range [%#x, %#x)",
			info.VirtualAddressOffset, info.VirtualAddressMax)
	}

	return &Device{
		drm:    d,
		vaNext: alignUp(info.VirtualAddressOffset, vaPageSize),
		vaMax:  info.VirtualAddressMax,
	}, nil
}

// DRM returns the underlying device.
func (d *Device) DRM() *drm.Device { return d.drm }

// allocVA hands out page-aligned GPU virtual addresses from the range
// the kernel reported. Addresses are never recycled; a capture maps a
// handful of buffers, far below range exhaustion.
func (d *Device) allocVA(size uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	va := d.vaNext
	end := alignUp(va+size, vaPageSize)
	if end > d.vaMax {
		return 0, fmt.Errorf("amdgpu: GPU VA range exhausted at %#x", va)
	}
	d.vaNext = end
	return va, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
