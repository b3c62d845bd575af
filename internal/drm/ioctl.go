//go:build linux

package drm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux _IOC encoding. DRM requests live under the 'd' ioctl type;
// driver-private requests start at commandBase.
const (
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	drmIoctlType = 'd'

)

// CommandBase is DRM_COMMAND_BASE, the start of the driver-private
// ioctl range used by internal/amdgpu.
const CommandBase = 0x40

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | drmIoctlType<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

// IOWR builds a read-write DRM ioctl request number.
func IOWR(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }

// IOW builds a write-only DRM ioctl request number.
func IOW(nr, size uintptr) uintptr { return ioc(iocWrite, nr, size) }

// Command builds a read-write request in the driver-private range.
func Command(nr, size uintptr) uintptr { return IOWR(CommandBase+nr, size) }

// Ioctl issues a DRM ioctl, retrying on EINTR and EAGAIN as libdrm
// does: modeset ioctls are interruptible while waiting on locks.
func Ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR || errno == unix.EAGAIN {
			continue
		}
		return errno
	}
}
