package render

import "encoding/binary"

// EncodeBMP serializes the framebuffer as a 1-bit-per-pixel BMP: 14-byte file
// header, 40-byte info header, two-entry palette (index 0 = black, index 1 =
// white), then bottom-up row-major pixel rows with a stride of width/8 bytes.
// The bit convention matches the framebuffer exactly, so the encoding is a
// header plus a row-reversed copy.
func EncodeBMP(fb *Framebuffer) []byte {
	const (
		fileHeaderSize = 14
		infoHeaderSize = 40
		paletteSize    = 8
	)
	offset := fileHeaderSize + infoHeaderSize + paletteSize
	imageSize := fb.stride * fb.height
	total := offset + imageSize

	out := make([]byte, total)

	// file header
	out[0] = 'B'
	out[1] = 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(total))
	binary.LittleEndian.PutUint32(out[10:], uint32(offset))

	// info header
	binary.LittleEndian.PutUint32(out[14:], infoHeaderSize)
	binary.LittleEndian.PutUint32(out[18:], uint32(fb.width))
	binary.LittleEndian.PutUint32(out[22:], uint32(fb.height))
	binary.LittleEndian.PutUint16(out[26:], 1) // planes
	binary.LittleEndian.PutUint16(out[28:], 1) // bits per pixel
	binary.LittleEndian.PutUint32(out[34:], uint32(imageSize))

	// palette: index 0 black, index 1 white (BGRA)
	palette := out[fileHeaderSize+infoHeaderSize : offset]
	palette[4] = 0xFF
	palette[5] = 0xFF
	palette[6] = 0xFF

	// pixel rows, bottom-up
	for y := 0; y < fb.height; y++ {
		src := fb.buf[y*fb.stride : (y+1)*fb.stride]
		dstRow := fb.height - 1 - y
		copy(out[offset+dstRow*fb.stride:], src)
	}

	return out
}
