package capture

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeAuto, true},
		{"auto", ModeAuto, true},
		{"AUTO", ModeAuto, true},
		{"sdr", ModeSdr, true},
		{"Sdr", ModeSdr, true},
		{"hdr", ModeHdr, true},
		{" hdr ", ModeHdr, true},
		{"vivid", ModeAuto, false},
		{"hdr10", ModeAuto, false},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if !tt.ok {
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrInvalidMode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPixelFormatSizes(t *testing.T) {
	if got := FormatBgra8.ChannelSize(); got != 1 {
		t.Errorf("Bgra8 channel size = %d, want 1", got)
	}
	if got := FormatRgba16f.ChannelSize(); got != 2 {
		t.Errorf("Rgba16f channel size = %d, want 2", got)
	}
	if got := FormatBgra8.BytesPerPixel(); got != 4 {
		t.Errorf("Bgra8 bytes per pixel = %d, want 4", got)
	}
	if got := FormatRgba16f.BytesPerPixel(); got != 8 {
		t.Errorf("Rgba16f bytes per pixel = %d, want 8", got)
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		hdrActive bool
		want      PixelFormat
		wantDiag  string // "" means no advisory expected
	}{
		{"auto on sdr target", ModeAuto, false, FormatBgra8, ""},
		{"auto on hdr target", ModeAuto, true, FormatRgba16f, ""},
		{"sdr on sdr target still warns", ModeSdr, false, FormatBgra8, DiagSdrForced},
		{"sdr on hdr target", ModeSdr, true, FormatBgra8, DiagSdrForced},
		{"hdr granted", ModeHdr, true, FormatRgba16f, ""},
		{"hdr falls back with advisory", ModeHdr, false, FormatBgra8, DiagHdrUnavailable},
	}

	for _, tt := range tests {
		var rec diagRecorder
		got := negotiate(tt.mode, tt.hdrActive, rec.emit)
		if got != tt.want {
			t.Errorf("%s: negotiate = %v, want %v", tt.name, got, tt.want)
		}
		switch {
		case tt.wantDiag == "" && len(rec.diags) != 0:
			t.Errorf("%s: unexpected diagnostics %v", tt.name, rec.diags)
		case tt.wantDiag != "" && !rec.has(tt.wantDiag):
			t.Errorf("%s: missing %s advisory, got %v", tt.name, tt.wantDiag, rec.diags)
		}
	}
}
