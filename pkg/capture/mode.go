package capture

import (
	"fmt"
	"strings"
)

// Mode selects the dynamic range of a capture session. The zero value is
// ModeAuto.
type Mode int

const (
	// ModeAuto negotiates the pixel format from the target's current state:
	// HDR-active targets produce FormatRgba16f, everything else FormatBgra8.
	ModeAuto Mode = iota

	// ModeSdr forces 8-bit FormatBgra8 output regardless of target state.
	ModeSdr

	// ModeHdr requests float FormatRgba16f output. If the target is not
	// HDR-active the session opens with FormatBgra8 and emits an advisory.
	ModeHdr
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeSdr:
		return "sdr"
	case ModeHdr:
		return "hdr"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) valid() bool {
	return m == ModeAuto || m == ModeSdr || m == ModeHdr
}

// ParseMode converts a config or CLI token into a Mode. Matching is
// case-insensitive; unknown tokens return ErrInvalidMode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "sdr":
		return ModeSdr, nil
	case "hdr":
		return ModeHdr, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q (want auto, sdr or hdr)", ErrInvalidMode, s)
}

// PixelFormat describes the memory layout of captured pixels.
type PixelFormat int

const (
	// FormatBgra8 is 8 bits per channel, byte order B,G,R,A.
	FormatBgra8 PixelFormat = iota

	// FormatRgba16f is a 16-bit IEEE half float per channel, channel order
	// R,G,B,A, scRGB primaries with linear 1.0 = the SDR white level.
	FormatRgba16f
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBgra8:
		return "Bgra8"
	case FormatRgba16f:
		return "Rgba16f"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ChannelSize returns the per-channel byte width: 1 for FormatBgra8,
// 2 for FormatRgba16f.
func (f PixelFormat) ChannelSize() int {
	if f == FormatRgba16f {
		return 2
	}
	return 1
}

// BytesPerPixel returns the stride of one pixel. Both formats carry four
// channels.
func (f PixelFormat) BytesPerPixel() int {
	return 4 * f.ChannelSize()
}

// negotiate maps the requested mode and the target's live HDR state to the
// session pixel format. The mode must already be validated; negotiate never
// fails, it only downgrades with an advisory.
func negotiate(mode Mode, hdrActive bool, emit DiagnosticFunc) PixelFormat {
	switch mode {
	case ModeSdr:
		// Unconditional: the caller may not know whether the target is
		// HDR-capable, and a later display change can make it so.
		emit(Diagnostic{
			Code:    DiagSdrForced,
			Message: "sdr mode forces 8-bit output; HDR content on this target will be tone-mapped",
		})
		return FormatBgra8
	case ModeHdr:
		if hdrActive {
			return FormatRgba16f
		}
		emit(Diagnostic{
			Code:    DiagHdrUnavailable,
			Message: "hdr mode requested but the target is not HDR-active; producing Bgra8",
		})
		return FormatBgra8
	default: // ModeAuto
		if hdrActive {
			return FormatRgba16f
		}
		return FormatBgra8
	}
}
