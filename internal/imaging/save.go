// Package imaging encodes captured pixel buffers to image files. The
// 8-bit family (png, bmp, jpg, tiff) tone-maps float input down; the
// float family (jxr, exr) stores 8-bit input widened and float input
// bit-for-bit. All writes go through a temp file and rename so a crash
// mid-encode never leaves a truncated image at the target path.
package imaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/breeze-rmm/hdrcap/internal/logging"
)

// ErrUnknownExtension is returned by Save for extensions no encoder
// claims. No file is created in that case.
var ErrUnknownExtension = errors.New("unknown image extension")

// Source is one captured image handed to Save. Exactly one of BGRA8 and
// RGBAHalf is set; both are tightly packed with no row padding.
type Source struct {
	Width  int
	Height int

	// BGRA8 holds 4 bytes per pixel, B,G,R,A order.
	BGRA8 []byte

	// RGBAHalf holds 8 bytes per pixel: little-endian IEEE half floats in
	// R,G,B,A order, linear scRGB.
	RGBAHalf []byte

	// SDRWhiteNits positions SDR white inside the float range for tone
	// mapping. 0 means the 80-nit sRGB reference.
	SDRWhiteNits float64

	// JPEGQuality overrides DefaultJPEGQuality when positive.
	JPEGQuality int
}

func (s Source) validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("imaging: bad dimensions %dx%d", s.Width, s.Height)
	}
	switch {
	case s.BGRA8 != nil && s.RGBAHalf != nil:
		return errors.New("imaging: source has both 8-bit and float pixels")
	case s.BGRA8 != nil:
		if want := s.Width * s.Height * 4; len(s.BGRA8) != want {
			return fmt.Errorf("imaging: 8-bit buffer is %d bytes, want %d", len(s.BGRA8), want)
		}
	case s.RGBAHalf != nil:
		if want := s.Width * s.Height * 8; len(s.RGBAHalf) != want {
			return fmt.Errorf("imaging: float buffer is %d bytes, want %d", len(s.RGBAHalf), want)
		}
	default:
		return errors.New("imaging: source has no pixels")
	}
	return nil
}

// Ext returns the lowercased extension of path without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// SupportedExt reports whether an extension (without the dot, any case)
// has an encoder.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case "png", "bmp", "jpg", "jpeg", "tif", "tiff", "jxr", "exr":
		return true
	}
	return false
}

// Save encodes src to path, picking the codec from the extension. The
// extension is checked before anything touches the filesystem.
func Save(path string, src Source) error {
	start := time.Now()
	ext := Ext(path)
	if !SupportedExt(ext) {
		return fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	if err := src.validate(); err != nil {
		return err
	}

	var err error
	switch ext {
	case "exr":
		err = writeAtomic(path, func(w io.Writer) error {
			return encodeEXR(w, src)
		})
	case "jxr":
		err = saveJXR(path, src)
	default:
		img := rasterize(src)
		err = writeAtomic(path, func(w io.Writer) error {
			switch ext {
			case "png":
				return encodePNG(w, img)
			case "bmp":
				return encodeBMP(w, img)
			case "jpg", "jpeg":
				return encodeJPEG(w, img, src.JPEGQuality)
			default:
				return encodeTIFF(w, img)
			}
		})
		rasterPool.put(img)
	}
	if err != nil {
		return err
	}

	logging.L("imaging").Debug("saved image",
		"path", path,
		logging.KeyFormat, ext,
		"width", src.Width,
		"height", src.Height,
		logging.KeyDurationMs, time.Since(start).Milliseconds())
	return nil
}

// writeAtomic encodes into a sibling temp file and renames it over path,
// so readers never observe a half-written image.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
