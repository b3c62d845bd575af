//go:build linux

// Package drm is a minimal pure-Go binding to the Linux DRM/KMS ioctl
// interface: device open, version query, plane and framebuffer
// enumeration, dumb buffers, GEM handles and PRIME fd export. Only the
// subset needed for screen capture is covered.
package drm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nrVersion       = 0x00
	nrGemClose      = 0x09
	nrGetCap        = 0x0c
	nrSetClientCap  = 0x0d
	nrPrimeToFD     = 0x2d
	nrPrimeToHandle = 0x2e
)

// Client capabilities accepted by SetClientCap.
const (
	ClientCapUniversalPlanes = 2
)

// ErrNotPrivileged reports that the device node rejected the open or a
// master-only ioctl; capture needs root or the video group.
var ErrNotPrivileged = errors.New("drm: insufficient privileges (run as root)")

// Device is an open DRM device node.
type Device struct {
	fd   int
	path string
}

// Open opens a DRM device node such as /dev/dri/card1.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return nil, fmt.Errorf("drm: open %s: %w", path, ErrNotPrivileged)
		}
		return nil, fmt.Errorf("drm: open %s: %w", path, err)
	}
	return &Device{fd: fd, path: path}, nil
}

// Close releases the device fd.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// FD exposes the raw file descriptor for driver-private ioctls and
// for handing the device to Vulkan.
func (d *Device) FD() int { return d.fd }

// Path returns the device node path the Device was opened from.
func (d *Device) Path() string { return d.path }

type versionArg struct {
	Major   int32
	Minor   int32
	Patch   int32
	NameLen uint64
	Name    uintptr
	DateLen uint64
	Date    uintptr
	DescLen uint64
	Desc    uintptr
}

// Version identifies the kernel driver behind a device node.
type Version struct {
	Name  string
	Major int32
	Minor int32
	Patch int32
	Desc  string
}

// Version queries the driver name and version. The ioctl is issued
// twice: once for string lengths, once to fill the buffers.
func (d *Device) Version() (*Version, error) {
	var arg versionArg
	req := IOWR(nrVersion, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("drm: version query: %w", err)
	}

	name := make([]byte, arg.NameLen+1)
	date := make([]byte, arg.DateLen+1)
	desc := make([]byte, arg.DescLen+1)
	arg.Name = uintptr(unsafe.Pointer(&name[0]))
	arg.Date = uintptr(unsafe.Pointer(&date[0]))
	arg.Desc = uintptr(unsafe.Pointer(&desc[0]))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("drm: version query: %w", err)
	}

	return &Version{
		Name:  string(name[:arg.NameLen]),
		Major: arg.Major,
		Minor: arg.Minor,
		Patch: arg.Patch,
		Desc:  string(desc[:arg.DescLen]),
	}, nil
}

type setClientCapArg struct {
	Capability uint64
	Value      uint64
}

// SetClientCap opts the client into an interface capability, e.g.
// ClientCapUniversalPlanes so primary planes appear in plane lists.
func (d *Device) SetClientCap(capability, value uint64) error {
	arg := setClientCapArg{Capability: capability, Value: value}
	req := IOW(nrSetClientCap, unsafe.Sizeof(arg))
	if err := Ioctl(d.fd, req, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("drm: set client cap %d: %w", capability, err)
	}
	return nil
}

// ListDevices returns the card device nodes present under /dev/dri,
// in directory order.
func ListDevices() ([]string, error) {
	entries, err := os.ReadDir("/dev/dri")
	if err != nil {
		return nil, fmt.Errorf("drm: list devices: %w", err)
	}
	var cards []string
	for _, e := range entries {
		name := e.Name()
		if len(name) > 4 && name[:4] == "card" {
			cards = append(cards, "/dev/dri/"+name)
		}
	}
	return cards, nil
}
