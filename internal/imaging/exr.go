package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// OpenEXR scanline format, version 2, no compression, half-float
// channels. Float sources keep their half bits verbatim; 8-bit sources
// are widened through widenLUT, so both directions are lossless.
const (
	exrVersion              = 2
	exrPixelTypeHalf        = 1
	exrCompressionNone      = 0
	exrLineOrderIncreasingY = 0
)

var exrMagic = []byte{0x76, 0x2f, 0x31, 0x01}

// exrChannels in the alphabetical order the format requires. halfOff
// indexes a channel inside an interleaved R,G,B,A half pixel, byteOff
// inside a B,G,R,A byte pixel.
var exrChannels = [4]struct {
	name    string
	halfOff int
	byteOff int
}{
	{"A", 3, 3},
	{"B", 2, 0},
	{"G", 1, 1},
	{"R", 0, 2},
}

func writeEXRAttr(b *bytes.Buffer, name, typ string, payload []byte) {
	b.WriteString(name)
	b.WriteByte(0)
	b.WriteString(typ)
	b.WriteByte(0)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(payload)))
	b.Write(n[:])
	b.Write(payload)
}

func exrChannelList() []byte {
	var b bytes.Buffer
	var u4 [4]byte
	for _, ch := range exrChannels {
		b.WriteString(ch.name)
		b.WriteByte(0)
		binary.LittleEndian.PutUint32(u4[:], exrPixelTypeHalf)
		b.Write(u4[:])
		// pLinear + reserved, then 1:1 x and y sampling.
		b.Write([]byte{0, 0, 0, 0})
		binary.LittleEndian.PutUint32(u4[:], 1)
		b.Write(u4[:])
		binary.LittleEndian.PutUint32(u4[:], 1)
		b.Write(u4[:])
	}
	b.WriteByte(0) // end of list
	return b.Bytes()
}

func exrBox2i(xMax, yMax int) []byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[8:], uint32(int32(xMax)))
	binary.LittleEndian.PutUint32(b[12:], uint32(int32(yMax)))
	return b[:]
}

func exrFloat(f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return b[:]
}

func encodeEXR(w io.Writer, src Source) error {
	hdr := getBuffer()
	defer putBuffer(hdr)

	hdr.Write(exrMagic)
	var u4 [4]byte
	binary.LittleEndian.PutUint32(u4[:], exrVersion)
	hdr.Write(u4[:])

	box := exrBox2i(src.Width-1, src.Height-1)
	writeEXRAttr(hdr, "channels", "chlist", exrChannelList())
	writeEXRAttr(hdr, "compression", "compression", []byte{exrCompressionNone})
	writeEXRAttr(hdr, "dataWindow", "box2i", box)
	writeEXRAttr(hdr, "displayWindow", "box2i", box)
	writeEXRAttr(hdr, "lineOrder", "lineOrder", []byte{exrLineOrderIncreasingY})
	writeEXRAttr(hdr, "pixelAspectRatio", "float", exrFloat(1))
	writeEXRAttr(hdr, "screenWindowCenter", "v2f", append(exrFloat(0), exrFloat(0)...))
	writeEXRAttr(hdr, "screenWindowWidth", "float", exrFloat(1))
	hdr.WriteByte(0) // end of header

	// Scanline layout is fixed-size without compression, so every offset
	// is known before any pixel is written.
	rowData := 4 * src.Width * 2
	blockSize := 8 + rowData
	dataStart := hdr.Len() + 8*src.Height

	var u8 [8]byte
	for y := 0; y < src.Height; y++ {
		binary.LittleEndian.PutUint64(u8[:], uint64(dataStart+y*blockSize))
		hdr.Write(u8[:])
	}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("write exr header: %w", err)
	}

	row := make([]byte, blockSize)
	for y := 0; y < src.Height; y++ {
		binary.LittleEndian.PutUint32(row[0:], uint32(int32(y)))
		binary.LittleEndian.PutUint32(row[4:], uint32(rowData))
		out := row[8:]
		for ci, ch := range exrChannels {
			base := ci * src.Width * 2
			if src.RGBAHalf != nil {
				rowOff := y * src.Width * 8
				for x := 0; x < src.Width; x++ {
					o := rowOff + x*8 + ch.halfOff*2
					out[base+2*x] = src.RGBAHalf[o]
					out[base+2*x+1] = src.RGBAHalf[o+1]
				}
			} else {
				rowOff := y * src.Width * 4
				for x := 0; x < src.Width; x++ {
					bits := widenLUT[src.BGRA8[rowOff+x*4+ch.byteOff]]
					binary.LittleEndian.PutUint16(out[base+2*x:], bits)
				}
			}
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("write exr scanline %d: %w", y, err)
		}
	}
	return nil
}
