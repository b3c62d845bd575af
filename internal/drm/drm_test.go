//go:build linux

package drm

import (
	"testing"
	"unsafe"
)

// Request numbers must match the kernel's uapi encoding exactly; the
// expected values below are the DRM_IOCTL_* constants as seen by
// strace on amd64.
func TestIoctlRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"VERSION", IOWR(nrVersion, unsafe.Sizeof(versionArg{})), 0xc0406400},
		{"GET_CAP", IOWR(nrGetCap, unsafe.Sizeof(getCapArg{})), 0xc010640c},
		{"SET_CLIENT_CAP", IOW(nrSetClientCap, unsafe.Sizeof(setClientCapArg{})), 0x4010640d},
		{"GEM_CLOSE", IOW(nrGemClose, unsafe.Sizeof(gemCloseArg{})), 0x40086409},
		{"PRIME_HANDLE_TO_FD", IOWR(nrPrimeToFD, unsafe.Sizeof(primeHandleArg{})), 0xc00c642d},
		{"PRIME_FD_TO_HANDLE", IOWR(nrPrimeToHandle, unsafe.Sizeof(primeHandleArg{})), 0xc00c642e},
		{"MODE_GETPLANERESOURCES", IOWR(nrModeGetPlaneResources, unsafe.Sizeof(getPlaneResArg{})), 0xc01064b5},
		{"MODE_GETPLANE", IOWR(nrModeGetPlane, unsafe.Sizeof(getPlaneArg{})), 0xc02064b6},
		{"MODE_GETFB", IOWR(nrModeGetFB, unsafe.Sizeof(fbCmd{})), 0xc01c64ad},
		{"MODE_GETFB2", IOWR(nrModeGetFB2, unsafe.Sizeof(fbCmd2{})), 0xc06864ce},
		{"MODE_CREATE_DUMB", IOWR(nrModeCreateDumb, unsafe.Sizeof(createDumbArg{})), 0xc02064b2},
		{"MODE_MAP_DUMB", IOWR(nrModeMapDumb, unsafe.Sizeof(mapDumbArg{})), 0xc01064b3},
		{"MODE_DESTROY_DUMB", IOWR(nrModeDestroyDumb, unsafe.Sizeof(destroyDumbArg{})), 0xc00464b4},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: encoded %#x, kernel uses %#x", tt.name, tt.got, tt.want)
		}
	}
}

// Argument structs are handed to the kernel verbatim, so their layout
// must match the uapi struct sizes.
func TestArgStructSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"drm_version", unsafe.Sizeof(versionArg{}), 64},
		{"drm_mode_get_plane_res", unsafe.Sizeof(getPlaneResArg{}), 16},
		{"drm_mode_get_plane", unsafe.Sizeof(getPlaneArg{}), 32},
		{"drm_mode_fb_cmd", unsafe.Sizeof(fbCmd{}), 28},
		{"drm_mode_fb_cmd2", unsafe.Sizeof(fbCmd2{}), 104},
		{"drm_mode_create_dumb", unsafe.Sizeof(createDumbArg{}), 32},
		{"drm_mode_map_dumb", unsafe.Sizeof(mapDumbArg{}), 16},
		{"drm_prime_handle", unsafe.Sizeof(primeHandleArg{}), 12},
		{"drm_gem_close", unsafe.Sizeof(gemCloseArg{}), 8},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: sizeof = %d, kernel struct is %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestLegacyFormat(t *testing.T) {
	if got := legacyFormat(16, 16); got != fourcc('R', 'G', '1', '6') {
		t.Errorf("bpp 16 mapped to %#x", got)
	}
	if got := legacyFormat(32, 24); got != fourcc('X', 'R', '2', '4') {
		t.Errorf("bpp 32 depth 24 mapped to %#x", got)
	}
	if got := legacyFormat(32, 30); got != fourcc('X', 'R', '3', '0') {
		t.Errorf("bpp 32 depth 30 mapped to %#x", got)
	}
}

func TestCommandRange(t *testing.T) {
	// Driver-private requests sit at DRM_COMMAND_BASE + nr.
	req := Command(0x04, 24)
	nr := (req >> iocNrShift) & 0xff
	if nr != CommandBase+0x04 {
		t.Errorf("Command nr = %#x, want %#x", nr, CommandBase+0x04)
	}
}
