package imaging

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// referenceWhiteNits is nominal scRGB 1.0. Pixels from a float capture are
// linear multiples of it; the display's SDR white level says how many of
// those multiples SDR content occupies.
const referenceWhiteNits = 80.0

// whiteScale returns the multiplier that brings the SDR white point of a
// linear scRGB pixel to 1.0.
func whiteScale(sdrWhiteNits float64) float32 {
	if sdrWhiteNits <= 0 {
		sdrWhiteNits = referenceWhiteNits
	}
	return float32(referenceWhiteNits / sdrWhiteNits)
}

// srgbEncode applies the piecewise sRGB transfer curve to a linear value
// in [0,1].
func srgbEncode(c float32) float32 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*float32(math.Pow(float64(c), 1/2.4)) - 0.055
}

// encodeChannel maps one linear, white-scaled channel to 8 bits. Values
// above SDR white clip to 255; NaNs and negatives clamp to 0.
func encodeChannel(c float32) byte {
	if c != c || c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return byte(srgbEncode(c)*255 + 0.5)
}

// tonemapHalfToNRGBA down-converts interleaved R,G,B,A little-endian half
// floats to 8-bit sRGB: scale so SDR white lands at 1.0, clip the HDR
// headroom, apply the sRGB curve. Alpha is clamped linearly without the
// curve.
func tonemapHalfToNRGBA(src []byte, dst []byte, scale float32) {
	n := len(dst) / 4
	for i := 0; i < n; i++ {
		s := src[i*8 : i*8+8]
		r := float16.Frombits(binary.LittleEndian.Uint16(s[0:])).Float32()
		g := float16.Frombits(binary.LittleEndian.Uint16(s[2:])).Float32()
		b := float16.Frombits(binary.LittleEndian.Uint16(s[4:])).Float32()
		a := float16.Frombits(binary.LittleEndian.Uint16(s[6:])).Float32()

		dst[i*4+0] = encodeChannel(r * scale)
		dst[i*4+1] = encodeChannel(g * scale)
		dst[i*4+2] = encodeChannel(b * scale)
		switch {
		case a != a || a <= 0:
			dst[i*4+3] = 0
		case a >= 1:
			dst[i*4+3] = 255
		default:
			dst[i*4+3] = byte(a*255 + 0.5)
		}
	}
}

// bgraToNRGBA swizzles 8-bit B,G,R,A into R,G,B,A.
func bgraToNRGBA(src []byte, dst []byte) {
	n := len(dst) - 3
	for i := 0; i < n; i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+3]
	}
}

// widenLUT maps an 8-bit channel value to the half-float bits of v/255.
// The mapping round-trips exactly: half precision at 1.0 is 2^-11, finer
// than the 1/255 quantization, so converting back to 8 bits recovers v.
var widenLUT = func() [256]uint16 {
	var lut [256]uint16
	for v := 0; v < 256; v++ {
		lut[v] = float16.Fromfloat32(float32(v) / 255).Bits()
	}
	return lut
}()
