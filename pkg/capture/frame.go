package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/x448/float16"

	"github.com/breeze-rmm/hdrcap/internal/imaging"
)

// monoStart anchors frame timestamps. All frames in a process share this
// base, so timestamps from different sessions are directly comparable.
var monoStart = time.Now()

func nowSeconds() float64 {
	return time.Since(monoStart).Seconds()
}

// Frame is one captured image. Frames are immutable and self-contained:
// they stay valid after the session that produced them is closed.
//
// Pixels are tightly packed, exactly Width*Height*Format.BytesPerPixel()
// bytes with no row padding.
type Frame struct {
	width     int
	height    int
	format    PixelFormat
	timestamp float64
	whiteNits float64
	buf       []byte
}

// newFrame wraps buf without copying. The caller hands over ownership.
func newFrame(width, height int, format PixelFormat, timestamp, whiteNits float64, buf []byte) *Frame {
	return &Frame{
		width:     width,
		height:    height,
		format:    format,
		timestamp: timestamp,
		whiteNits: whiteNits,
		buf:       buf,
	}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Format returns the pixel format the session negotiated.
func (f *Frame) Format() PixelFormat { return f.format }

// Timestamp returns seconds on a process-wide monotonic clock, sampled at
// acquisition. Later frames always carry larger values.
func (f *Frame) Timestamp() float64 { return f.timestamp }

// SDRWhiteNits is the SDR white level of the source display at capture
// time, used when tone-mapping float pixels down to 8 bits. 0 means
// unknown; consumers should assume the 80-nit sRGB reference.
func (f *Frame) SDRWhiteNits() float64 { return f.whiteNits }

// Bytes exposes the pixel buffer without copying. Every call returns a view
// of the same backing array. The buffer must be treated as read-only;
// callers that need to mutate pixels should copy it first.
func (f *Frame) Bytes() []byte { return f.buf }

// Halfs decodes a FormatRgba16f frame into half-precision channel values in
// R,G,B,A order. It returns nil for 8-bit frames. The result is a copy.
func (f *Frame) Halfs() []float16.Float16 {
	if f.format != FormatRgba16f {
		return nil
	}
	out := make([]float16.Float16, len(f.buf)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(f.buf[2*i:]))
	}
	return out
}

// Floats decodes a FormatRgba16f frame into float32 channel values in
// R,G,B,A order. It returns nil for 8-bit frames.
func (f *Frame) Floats() []float32 {
	if f.format != FormatRgba16f {
		return nil
	}
	out := make([]float32, len(f.buf)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(f.buf[2*i:])).Float32()
	}
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%dx%d, %s, t=%.3fs)", f.width, f.height, f.format, f.timestamp)
}

// Save encodes the frame to path, picking the codec from the file
// extension. png, bmp, jpg/jpeg and tif/tiff produce 8-bit images
// (float frames are tone-mapped down); jxr and exr keep float pixels at
// full precision (8-bit frames are widened losslessly). An unrecognized
// extension returns ErrUnsupportedFormat and creates no file.
func (f *Frame) Save(path string) error {
	src := imaging.Source{
		Width:        f.width,
		Height:       f.height,
		SDRWhiteNits: f.whiteNits,
	}
	switch f.format {
	case FormatBgra8:
		src.BGRA8 = f.buf
	case FormatRgba16f:
		src.RGBAHalf = f.buf
	default:
		return fmt.Errorf("%w: cannot encode %s", ErrUnsupportedFormat, f.format)
	}
	err := imaging.Save(path, src)
	if errors.Is(err, imaging.ErrUnknownExtension) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, imaging.Ext(path))
	}
	return err
}
