//go:build linux

package amdgpu

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kmsgrab/kmsgrab/internal/drm"
)

// GEM memory domains and creation flags.
const (
	DomainCPU  = 0x1
	DomainGTT  = 0x2
	DomainVRAM = 0x4

	createCPUAccessRequired = 1 << 0
)

// GPU VA operations and page flags.
const (
	vaOpMap   = 1
	vaOpUnmap = 2

	vmPageReadable   = 1 << 1
	vmPageWriteable  = 1 << 2
	vmPageExecutable = 1 << 3
)

type gemCreateArg struct {
	// in: bo_size, alignment, domains, domain_flags
	// out: handle in the first word
	BOSize      uint64
	Alignment   uint64
	Domains     uint64
	DomainFlags uint64
}

type gemMmapArg struct {
	// in: handle; out: mmap offset
	Handle uint32
	_      uint32
}

type gemVAArg struct {
	Handle     uint32
	_          uint32
	Operation  uint32
	Flags      uint32
	VAAddress  uint64
	OffsetInBO uint64
	MapSize    uint64
}

// BO is a buffer object with an optional CPU mapping and GPU VA.
type BO struct {
	dev    *Device
	Handle uint32
	Size   uint64
	VA     uint64

	data  []byte
	owned bool
}

// CreateBuffer allocates a CPU-visible GTT buffer for staging SDMA
// copies. Size is rounded up to page granularity by the kernel.
func (d *Device) CreateBuffer(size uint64) (*BO, error) {
	arg := gemCreateArg{
		BOSize:      size,
		Alignment:   vaPageSize,
		Domains:     DomainGTT,
		DomainFlags: createCPUAccessRequired,
	}
	req := drm.Command(nrGemCreate, unsafe.Sizeof(arg))
	if err := drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("amdgpu: gem create %d bytes: %w", size, err)
	}
	handle := uint32(arg.BOSize) // out union aliases the first field
	return &BO{dev: d, Handle: handle, Size: size, owned: true}, nil
}

// WrapHandle wraps an existing GEM handle, e.g. a scanout buffer from
// a framebuffer query, so it can be VA-mapped. The caller retains
// ownership; Free leaves the handle open.
func (d *Device) WrapHandle(handle uint32, size uint64) *BO {
	return &BO{dev: d, Handle: handle, Size: size}
}

// Map maps the buffer into the process address space.
func (b *BO) Map() ([]byte, error) {
	if b.data != nil {
		return b.data, nil
	}
	arg := gemMmapArg{Handle: b.Handle}
	req := drm.Command(nrGemMmap, unsafe.Sizeof(arg))
	if err := drm.Ioctl(b.dev.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("amdgpu: gem mmap handle %d: %w", b.Handle, err)
	}
	offset := *(*uint64)(unsafe.Pointer(&arg))
	data, err := unix.Mmap(b.dev.drm.FD(), int64(offset), int(b.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("amdgpu: mmap handle %d: %w", b.Handle, err)
	}
	b.data = data
	return data, nil
}

// MapVA binds the buffer into the GPU virtual address space and
// records the address in b.VA.
func (b *BO) MapVA() error {
	if b.VA != 0 {
		return nil
	}
	va, err := b.dev.allocVA(b.Size)
	if err != nil {
		return err
	}
	arg := gemVAArg{
		Handle:    b.Handle,
		Operation: vaOpMap,
		Flags:     vmPageReadable | vmPageWriteable | vmPageExecutable,
		VAAddress: va,
		MapSize:   alignUp(b.Size, vaPageSize),
	}
	req := drm.Command(nrGemVA, unsafe.Sizeof(arg))
	if err := drm.Ioctl(b.dev.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("amdgpu: map VA %#x for handle %d: %w", va, b.Handle, err)
	}
	b.VA = va
	return nil
}

// UnmapVA removes the GPU mapping. Must precede handle close; freeing
// a mapped buffer leaves a dangling GPU page table entry.
func (b *BO) UnmapVA() error {
	if b.VA == 0 {
		return nil
	}
	arg := gemVAArg{
		Handle:    b.Handle,
		Operation: vaOpUnmap,
		VAAddress: b.VA,
		MapSize:   alignUp(b.Size, vaPageSize),
	}
	req := drm.Command(nrGemVA, unsafe.Sizeof(arg))
	if err := drm.Ioctl(b.dev.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("amdgpu: unmap VA %#x for handle %d: %w", b.VA, b.Handle, err)
	}
	b.VA = 0
	return nil
}

// Free unmaps the GPU VA, drops the CPU mapping and closes the handle.
func (b *BO) Free() {
	b.UnmapVA()
	if b.data != nil {
		unix.Munmap(b.data)
		b.data = nil
	}
	if b.owned && b.Handle != 0 {
		b.dev.drm.GemClose(b.Handle)
	}
	b.Handle = 0
}
