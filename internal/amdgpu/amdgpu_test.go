//go:build linux

package amdgpu

import (
	"testing"
	"unsafe"

	"github.com/kmsgrab/kmsgrab/internal/drm"
)

// Expected values are the DRM_IOCTL_AMDGPU_* constants from the kernel
// uapi header on amd64.
func TestIoctlRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"GEM_CREATE", drm.Command(nrGemCreate, unsafe.Sizeof(gemCreateArg{})), 0xc0206440},
		{"GEM_MMAP", drm.Command(nrGemMmap, unsafe.Sizeof(gemMmapArg{})), 0xc0086441},
		{"CTX", drm.Command(nrCtx, unsafe.Sizeof(ctxArg{})), 0xc0106442},
		{"BO_LIST", drm.Command(nrBOList, unsafe.Sizeof(boListIn{})), 0xc0186443},
		{"CS", drm.Command(nrCS, unsafe.Sizeof(csIn{})), 0xc0186444},
		{"INFO", drm.IOW(drm.CommandBase+nrInfo, unsafe.Sizeof(infoArg{})), 0x40206445},
		{"GEM_VA", drm.Command(nrGemVA, unsafe.Sizeof(gemVAArg{})), 0xc0286448},
		{"WAIT_CS", drm.Command(nrWaitCS, unsafe.Sizeof(waitCSIn{})), 0xc0206449},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: encoded %#x, kernel uses %#x", tt.name, tt.got, tt.want)
		}
	}
}

// The dev info query copies into a caller buffer by offset, so the VA
// range fields must sit exactly where drm_amdgpu_info_device puts them.
func TestDevInfoLayout(t *testing.T) {
	var di devInfo
	if off := unsafe.Offsetof(di.IDSFlags); off != 136 {
		t.Errorf("ids_flags at offset %d, want 136", off)
	}
	if off := unsafe.Offsetof(di.VirtualAddressOffset); off != 144 {
		t.Errorf("virtual_address_offset at offset %d, want 144", off)
	}
	if off := unsafe.Offsetof(di.VirtualAddressMax); off != 152 {
		t.Errorf("virtual_address_max at offset %d, want 152", off)
	}
}

func TestAllocVA(t *testing.T) {
	d := &Device{vaNext: 0x100000, vaMax: 0x103000}

	a, err := d.allocVA(100)
	if err != nil {
		t.Fatal(err)
	}
	if a != 0x100000 {
		t.Fatalf("first allocation at %#x, want %#x", a, 0x100000)
	}

	// The next address must be page-aligned past the previous block.
	b, err := d.allocVA(vaPageSize)
	if err != nil {
		t.Fatal(err)
	}
	if b != 0x101000 {
		t.Fatalf("second allocation at %#x, want %#x", b, 0x101000)
	}

	if _, err := d.allocVA(2 * vaPageSize); err == nil {
		t.Fatal("allocation past vaMax succeeded")
	}
}

func TestBuildCopyIBSingle(t *testing.T) {
	ib := make([]uint32, sdmaCopyPacketDW)
	n := BuildCopyIB(ib, 0x123456789000, 0xabcdef000, 4096)
	if n != sdmaCopyPacketDW {
		t.Fatalf("wrote %d dwords, want %d", n, sdmaCopyPacketDW)
	}
	// The header is pinned to the literal hardware encoding, opcode 1
	// (COPY) with sub-op 0 (LINEAR), not to the package constants.
	want := []uint32{
		0x1,
		4095,
		0,
		0x56789000, 0x1234,
		0xbcdef000, 0xa,
	}
	for i, w := range want {
		if ib[i] != w {
			t.Errorf("dword %d = %#x, want %#x", i, ib[i], w)
		}
	}
}

func TestBuildCopyIBChunked(t *testing.T) {
	size := uint64(maxCopyBytes + 4096)
	n := CopyIBLen(size)
	if n != 2*sdmaCopyPacketDW {
		t.Fatalf("CopyIBLen = %d, want %d", n, 2*sdmaCopyPacketDW)
	}
	ib := make([]uint32, n)
	if got := BuildCopyIB(ib, 0x1000, 0x800000, size); got != n {
		t.Fatalf("BuildCopyIB wrote %d dwords, want %d", got, n)
	}

	if ib[1] != maxCopyBytes-1 {
		t.Errorf("first packet count %#x, want %#x", ib[1], maxCopyBytes-1)
	}
	second := ib[sdmaCopyPacketDW:]
	if ib[0] != 0x1 || second[0] != 0x1 {
		t.Errorf("packet headers %#x, %#x, want COPY|LINEAR (0x1)", ib[0], second[0])
	}
	if second[1] != 4095 {
		t.Errorf("second packet count %#x, want %#x", second[1], 4095)
	}
	if second[3] != 0x1000+maxCopyBytes {
		t.Errorf("second packet src %#x, want %#x", second[3], 0x1000+maxCopyBytes)
	}
	if second[5] != 0x800000+maxCopyBytes {
		t.Errorf("second packet dst %#x, want %#x", second[5], 0x800000+maxCopyBytes)
	}
}
