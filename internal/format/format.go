// Package format describes DRM framebuffer pixel formats and converts
// row-strided pixel buffers to packed 8-bit RGB.
package format

import "fmt"

// DRM fourcc pixel format codes, little-endian packed.
const (
	XRGB8888     = uint32('X') | uint32('R')<<8 | uint32('2')<<16 | uint32('4')<<24
	ARGB8888     = uint32('A') | uint32('R')<<8 | uint32('2')<<16 | uint32('4')<<24
	XBGR8888     = uint32('X') | uint32('B')<<8 | uint32('2')<<16 | uint32('4')<<24
	ABGR8888     = uint32('A') | uint32('B')<<8 | uint32('2')<<16 | uint32('4')<<24
	RGB565       = uint32('R') | uint32('G')<<8 | uint32('1')<<16 | uint32('6')<<24
	ABGR16161616 = uint32('A') | uint32('B')<<8 | uint32('4')<<16 | uint32('8')<<24
)

// Framebuffer layout modifiers. Zero is the linear sentinel; anything
// else means the pixels are in a vendor tiling layout.
const (
	ModLinear uint64 = 0
)

// Tiled reports whether a layout modifier indicates hardware tiling.
func Tiled(modifier uint64) bool {
	return modifier != ModLinear
}

// Info describes the byte layout of a supported pixel format.
type Info struct {
	Name          string
	BytesPerPixel int
	// HDR marks the one wide-gamut layout that needs tone mapping
	// before it can be displayed in 8 bits per channel.
	HDR bool
}

var catalog = map[uint32]Info{
	XRGB8888:     {Name: "XRGB8888", BytesPerPixel: 4},
	ARGB8888:     {Name: "ARGB8888", BytesPerPixel: 4},
	XBGR8888:     {Name: "XBGR8888", BytesPerPixel: 4},
	ABGR8888:     {Name: "ABGR8888", BytesPerPixel: 4},
	RGB565:       {Name: "RGB565", BytesPerPixel: 2},
	ABGR16161616: {Name: "ABGR16161616", BytesPerPixel: 8, HDR: true},
}

// Lookup returns layout information for a fourcc code.
func Lookup(fourcc uint32) (Info, bool) {
	info, ok := catalog[fourcc]
	return info, ok
}

// Name returns the catalog name for a fourcc code, or the raw fourcc
// characters for codes outside the catalog (e.g. "NV12").
func Name(fourcc uint32) string {
	if info, ok := catalog[fourcc]; ok {
		return info.Name
	}
	return fmt.Sprintf("%c%c%c%c", printable(byte(fourcc)), printable(byte(fourcc>>8)),
		printable(byte(fourcc>>16)), printable(byte(fourcc>>24)))
}

func printable(b byte) byte {
	if b < 0x20 || b > 0x7e {
		return '?'
	}
	return b
}
