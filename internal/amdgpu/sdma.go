//go:build linux

package amdgpu

const (
	sdmaOpCopy       = 1
	sdmaSubOpLinear  = 0
	sdmaCopyPacketDW = 7

	// maxCopyBytes keeps the byte count inside the packet's 22-bit
	// count field, rounded down to page granularity.
	maxCopyBytes = 0x3ff000
)

// CopyIBLen returns the dword length of the IB BuildCopyIB emits for a
// copy of the given size.
func CopyIBLen(size uint64) int {
	packets := int((size + maxCopyBytes - 1) / maxCopyBytes)
	return packets * sdmaCopyPacketDW
}

// BuildCopyIB writes SDMA linear-copy packets covering size bytes from
// srcVA to dstVA into ib and returns the number of dwords written.
// Large copies are split so each packet's count fits the hardware
// field.
func BuildCopyIB(ib []uint32, srcVA, dstVA, size uint64) int {
	n := 0
	for size > 0 {
		chunk := size
		if chunk > maxCopyBytes {
			chunk = maxCopyBytes
		}
		ib[n+0] = sdmaOpCopy | sdmaSubOpLinear<<8
		ib[n+1] = uint32(chunk) - 1
		ib[n+2] = 0
		ib[n+3] = uint32(srcVA)
		ib[n+4] = uint32(srcVA >> 32)
		ib[n+5] = uint32(dstVA)
		ib[n+6] = uint32(dstVA >> 32)
		n += sdmaCopyPacketDW
		srcVA += chunk
		dstVA += chunk
		size -= chunk
	}
	return n
}
