package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when a Source does not carry its own setting.
const DefaultJPEGQuality = 85

// rasterize converts a Source to an 8-bit NRGBA raster: a swizzle for
// BGRA sources, a tone map for float sources. The raster comes from the
// pool; callers return it with rasterPool.put when the encode is done.
func rasterize(src Source) *image.NRGBA {
	img := rasterPool.get(src.Width, src.Height)
	if src.BGRA8 != nil {
		bgraToNRGBA(src.BGRA8, img.Pix)
	} else {
		tonemapHalfToNRGBA(src.RGBAHalf, img.Pix, whiteScale(src.SDRWhiteNits))
	}
	return img
}

func encodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

func encodeBMP(w io.Writer, img image.Image) error {
	if err := bmp.Encode(w, img); err != nil {
		return fmt.Errorf("encode bmp: %w", err)
	}
	return nil
}

func encodeTIFF(w io.Writer, img image.Image) error {
	opts := tiff.Options{Compression: tiff.Deflate}
	if err := tiff.Encode(w, img, &opts); err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}
	return nil
}
