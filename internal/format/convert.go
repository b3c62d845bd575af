package format

import "encoding/binary"

// ToRGB24 converts a row-strided source buffer to tightly packed RGB,
// one byte per channel. Unknown fourcc codes yield an all-black buffer
// of the correct size rather than an error, so a partially-unsupported
// capture still produces a valid, inspectable image.
func ToRGB24(src []byte, width, height, stride int, fourcc uint32) []byte {
	dst := make([]byte, width*height*3)

	switch fourcc {
	case XRGB8888, ARGB8888:
		// BGRA in memory: channels high-to-low within the word.
		for y := 0; y < height; y++ {
			row := src[y*stride:]
			out := dst[y*width*3:]
			for x := 0; x < width; x++ {
				px := binary.LittleEndian.Uint32(row[x*4:])
				out[x*3+0] = byte(px >> 16)
				out[x*3+1] = byte(px >> 8)
				out[x*3+2] = byte(px)
			}
		}

	case XBGR8888, ABGR8888:
		// RGBA in memory: channels low-to-high within the word.
		for y := 0; y < height; y++ {
			row := src[y*stride:]
			out := dst[y*width*3:]
			for x := 0; x < width; x++ {
				px := binary.LittleEndian.Uint32(row[x*4:])
				out[x*3+0] = byte(px)
				out[x*3+1] = byte(px >> 8)
				out[x*3+2] = byte(px >> 16)
			}
		}

	case RGB565:
		// 5/6/5 bits, expanded by left shift as the scanout hardware does.
		for y := 0; y < height; y++ {
			row := src[y*stride:]
			out := dst[y*width*3:]
			for x := 0; x < width; x++ {
				px := binary.LittleEndian.Uint16(row[x*2:])
				out[x*3+0] = byte(px>>11) << 3
				out[x*3+1] = byte(px>>5&0x3F) << 2
				out[x*3+2] = byte(px&0x1F) << 3
			}
		}

	case ABGR16161616:
		// Four 16-bit channels; narrow by taking the high byte, drop alpha.
		for y := 0; y < height; y++ {
			row := src[y*stride:]
			out := dst[y*width*3:]
			for x := 0; x < width; x++ {
				px := binary.LittleEndian.Uint64(row[x*8:])
				out[x*3+0] = byte(px >> 8)
				out[x*3+1] = byte(px >> 24)
				out[x*3+2] = byte(px >> 40)
			}
		}
	}

	return dst
}
