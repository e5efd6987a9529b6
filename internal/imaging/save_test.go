package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x448/float16"
)

func testBGRA(w, h int) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = 0x20 // B
		buf[i+1] = 0x40 // G
		buf[i+2] = 0x80 // R
		buf[i+3] = 0xFF
	}
	return buf
}

func halfPixel(r, g, b, a float32) []byte {
	buf := make([]byte, 8)
	for i, v := range []float32{r, g, b, a} {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	return buf
}

func TestExt(t *testing.T) {
	tests := []struct{ path, want string }{
		{"shot.png", "png"},
		{"shot.PNG", "png"},
		{"dir/shot.scene1.exr", "exr"},
		{"noext", ""},
		{"trailingdot.", ""},
	}
	for _, tt := range tests {
		if got := Ext(tt.path); got != tt.want {
			t.Errorf("Ext(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSupportedExt(t *testing.T) {
	for _, ext := range []string{"png", "bmp", "jpg", "jpeg", "tif", "tiff", "jxr", "exr", "PNG", "JXR"} {
		if !SupportedExt(ext) {
			t.Errorf("SupportedExt(%q) = false, want true", ext)
		}
	}
	for _, ext := range []string{"", "webp", "gif", "heic", "txt"} {
		if SupportedExt(ext) {
			t.Errorf("SupportedExt(%q) = true, want false", ext)
		}
	}
}

func TestSavePortableFormats(t *testing.T) {
	dir := t.TempDir()
	src := Source{Width: 3, Height: 2, BGRA8: testBGRA(3, 2)}

	for _, ext := range []string{"png", "bmp", "jpg", "jpeg", "tif", "tiff", "exr"} {
		path := filepath.Join(dir, "out."+ext)
		if err := Save(path, src); err != nil {
			t.Fatalf("save %s: %v", ext, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", ext, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s file is empty", ext)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestSaveUnknownExtensionCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	src := Source{Width: 1, Height: 1, BGRA8: testBGRA(1, 1)}

	err := Save(filepath.Join(dir, "shot.webp"), src)
	if !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("err = %v, want ErrUnknownExtension", err)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected save left %d files behind", len(entries))
	}
}

func TestSaveExtensionCheckedBeforeSource(t *testing.T) {
	// Even a hopeless source reports the extension problem: the format
	// gate runs first.
	err := Save(filepath.Join(t.TempDir(), "x.xyz"), Source{})
	if !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("err = %v, want ErrUnknownExtension", err)
	}
}

func TestSaveRejectsBadSources(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		src  Source
	}{
		{"no pixels", Source{Width: 2, Height: 2}},
		{"both buffers", Source{Width: 1, Height: 1, BGRA8: make([]byte, 4), RGBAHalf: make([]byte, 8)}},
		{"short 8-bit buffer", Source{Width: 2, Height: 2, BGRA8: make([]byte, 4)}},
		{"short float buffer", Source{Width: 2, Height: 2, RGBAHalf: make([]byte, 8)}},
		{"zero width", Source{Width: 0, Height: 2, BGRA8: []byte{}}},
	}

	for i, tt := range tests {
		path := filepath.Join(dir, "bad"+string(rune('a'+i))+".png")
		if err := Save(path, tt.src); err == nil {
			t.Errorf("%s: save succeeded, want error", tt.name)
			continue
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s: file was created despite rejected source", tt.name)
		}
	}
}

func TestSaveReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(path, []byte("stale bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := Source{Width: 2, Height: 2, BGRA8: testBGRA(2, 2)}
	if err := Save(path, src); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("existing file was not replaced with a png")
	}
}

func TestSavePNGPixels(t *testing.T) {
	// One pure blue pixel in BGRA order must survive the swizzle.
	src := Source{Width: 1, Height: 1, BGRA8: []byte{255, 0, 0, 255}}
	path := filepath.Join(t.TempDir(), "px.png")
	if err := Save(path, src); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if r != 0 || g != 0 || b != 0xFFFF || a != 0xFFFF {
		t.Fatalf("pixel = %d,%d,%d,%d, want pure blue", r, g, b, a)
	}
}

func TestSaveFloatSourceTonemapsTo8Bit(t *testing.T) {
	// Linear red at 2x SDR white clips to full red in the 8-bit family.
	src := Source{
		Width:        1,
		Height:       1,
		RGBAHalf:     halfPixel(2.0, 0, 0, 1.0),
		SDRWhiteNits: 80,
	}
	path := filepath.Join(t.TempDir(), "hdr.png")
	if err := Save(path, src); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if r != 0xFFFF || g != 0 || b != 0 || a != 0xFFFF {
		t.Fatalf("pixel = %d,%d,%d,%d, want clipped red", r, g, b, a)
	}
}
