//go:build linux

package amdgpu

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/kmsgrab/kmsgrab/internal/drm"
)

const (
	ctxOpAlloc = 1
	ctxOpFree  = 2

	boListOpCreate  = 0
	boListOpDestroy = 1

	chunkIDIB = 0x01

	// HWIPDMA selects the SDMA engine for command submission.
	HWIPDMA = 2

	timeoutInfinite = ^uint64(0)
)

type ctxArg struct {
	Op       uint32
	Flags    uint32
	CtxID    uint32
	Priority int32
	// out union overlays the fields above on return
}

type boListIn struct {
	Operation  uint32
	ListHandle uint32
	BONumber   uint32
	BOInfoSize uint32
	BOInfoPtr  uint64
}

type boListEntry struct {
	Handle   uint32
	Priority uint32
}

type csIn struct {
	CtxID        uint32
	BOListHandle uint32
	NumChunks    uint32
	Flags        uint32
	Chunks       uint64
}

type csChunk struct {
	ChunkID  uint32
	LengthDW uint32
	Data     uint64
}

type csChunkIB struct {
	_          uint32
	Flags      uint32
	VAStart    uint64
	IBBytes    uint32
	IPType     uint32
	IPInstance uint32
	Ring       uint32
}

type waitCSIn struct {
	Handle     uint64
	Timeout    uint64
	IPType     uint32
	IPInstance uint32
	Ring       uint32
	CtxID      uint32
}

// Context is a GPU submission context.
type Context struct {
	dev *Device
	ID  uint32
}

// CreateContext allocates a submission context.
func (d *Device) CreateContext() (*Context, error) {
	arg := ctxArg{Op: ctxOpAlloc}
	req := drm.Command(nrCtx, unsafe.Sizeof(arg))
	if err := drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("amdgpu: context alloc: %w", err)
	}
	// out union: ctx_id is the first word
	return &Context{dev: d, ID: arg.Op}, nil
}

// Free releases the context.
func (c *Context) Free() {
	arg := ctxArg{Op: ctxOpFree, CtxID: c.ID}
	req := drm.Command(nrCtx, unsafe.Sizeof(arg))
	drm.Ioctl(c.dev.drm.FD(), req, unsafe.Pointer(&arg))
	c.ID = 0
}

// createBOList registers the handles an IB references so the kernel
// can validate and fence them.
func (d *Device) createBOList(handles []uint32) (uint32, error) {
	entries := make([]boListEntry, len(handles))
	for i, h := range handles {
		entries[i] = boListEntry{Handle: h}
	}
	arg := boListIn{
		Operation:  boListOpCreate,
		BONumber:   uint32(len(entries)),
		BOInfoSize: uint32(unsafe.Sizeof(boListEntry{})),
		BOInfoPtr:  uint64(uintptr(unsafe.Pointer(&entries[0]))),
	}
	req := drm.Command(nrBOList, unsafe.Sizeof(arg))
	err := drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg))
	runtime.KeepAlive(entries)
	if err != nil {
		return 0, fmt.Errorf("amdgpu: bo list create: %w", err)
	}
	return arg.Operation, nil // out union: list_handle first
}

func (d *Device) destroyBOList(handle uint32) {
	arg := boListIn{Operation: boListOpDestroy, ListHandle: handle}
	req := drm.Command(nrBOList, unsafe.Sizeof(arg))
	drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg))
}

// Submit sends one indirect buffer to the given engine and returns the
// fence sequence number. The IB must already be VA-mapped; handles
// lists every BO the commands touch, the IB included.
func (d *Device) Submit(ctx *Context, ib *BO, lenDW int, ipType uint32, handles []uint32) (uint64, error) {
	if ib.VA == 0 {
		return 0, fmt.Errorf("amdgpu: submit: IB has no GPU VA")
	}
	list, err := d.createBOList(handles)
	if err != nil {
		return 0, err
	}
	defer d.destroyBOList(list)

	ibChunk := csChunkIB{
		VAStart: ib.VA,
		IBBytes: uint32(lenDW) * 4,
		IPType:  ipType,
	}
	chunk := csChunk{
		ChunkID:  chunkIDIB,
		LengthDW: uint32(unsafe.Sizeof(ibChunk) / 4),
		Data:     uint64(uintptr(unsafe.Pointer(&ibChunk))),
	}
	chunkPtr := uint64(uintptr(unsafe.Pointer(&chunk)))
	arg := csIn{
		CtxID:        ctx.ID,
		BOListHandle: list,
		NumChunks:    1,
		Chunks:       uint64(uintptr(unsafe.Pointer(&chunkPtr))),
	}
	req := drm.Command(nrCS, unsafe.Sizeof(arg))
	err = drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg))
	runtime.KeepAlive(&ibChunk)
	runtime.KeepAlive(&chunk)
	runtime.KeepAlive(&chunkPtr)
	if err != nil {
		return 0, fmt.Errorf("amdgpu: cs submit: %w", err)
	}
	// out union: the fence handle is a u64 over the first two words
	seq := *(*uint64)(unsafe.Pointer(&arg))
	return seq, nil
}

// WaitIdle blocks until the fence from Submit signals.
func (d *Device) WaitIdle(ctx *Context, seq uint64, ipType uint32) error {
	arg := waitCSIn{
		Handle:  seq,
		Timeout: timeoutInfinite,
		IPType:  ipType,
		CtxID:   ctx.ID,
	}
	req := drm.Command(nrWaitCS, unsafe.Sizeof(arg))
	if err := drm.Ioctl(d.drm.FD(), req, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("amdgpu: wait cs seq %d: %w", seq, err)
	}
	return nil
}
