package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/x448/float16"
)

func TestFrameBytesSharesBacking(t *testing.T) {
	buf := make([]byte, 2*2*4)
	f := newFrame(2, 2, FormatBgra8, nowSeconds(), 80, buf)

	a, b := f.Bytes(), f.Bytes()
	if len(a) != len(buf) {
		t.Fatalf("Bytes() is %d bytes, want %d", len(a), len(buf))
	}
	if &a[0] != &b[0] {
		t.Fatal("repeated Bytes() calls should return views of one backing array")
	}
	if &a[0] != &buf[0] {
		t.Fatal("Bytes() should not copy the pixel buffer")
	}
}

func TestFrameSizeInvariant(t *testing.T) {
	f8 := newFrame(7, 3, FormatBgra8, 0, 80, make([]byte, 7*3*4))
	if len(f8.Bytes()) != f8.Width()*f8.Height()*4*f8.Format().ChannelSize() {
		t.Fatal("8-bit frame size does not match w*h*4*channelSize")
	}
	f16 := newFrame(7, 3, FormatRgba16f, 0, 80, make([]byte, 7*3*8))
	if len(f16.Bytes()) != f16.Width()*f16.Height()*4*f16.Format().ChannelSize() {
		t.Fatal("float frame size does not match w*h*4*channelSize")
	}
}

func TestFrameHalfDecoding(t *testing.T) {
	want := []float32{1, 0.5, 0.25, 1}
	buf := make([]byte, 8)
	for i, v := range want {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	f := newFrame(1, 1, FormatRgba16f, 0, 200, buf)

	halfs := f.Halfs()
	if len(halfs) != 4 {
		t.Fatalf("Halfs() returned %d values, want 4", len(halfs))
	}
	floats := f.Floats()
	for i, v := range want {
		if got := halfs[i].Float32(); got != v {
			t.Errorf("halfs[%d] = %f, want %f", i, got, v)
		}
		if floats[i] != v {
			t.Errorf("floats[%d] = %f, want %f", i, floats[i], v)
		}
	}
}

func TestFrame8BitHasNoFloatView(t *testing.T) {
	f := newFrame(1, 1, FormatBgra8, 0, 80, make([]byte, 4))
	if f.Halfs() != nil {
		t.Error("Halfs() should be nil for 8-bit frames")
	}
	if f.Floats() != nil {
		t.Error("Floats() should be nil for 8-bit frames")
	}
}

func TestFrameTimestampMonotonic(t *testing.T) {
	t1 := nowSeconds()
	t2 := nowSeconds()
	if t1 < 0 {
		t.Fatalf("timestamp %f is negative", t1)
	}
	if t2 < t1 {
		t.Fatalf("timestamps went backwards: %f then %f", t1, t2)
	}
}

func TestFrameSaveUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	f := newFrame(2, 2, FormatBgra8, 0, 80, make([]byte, 16))

	path := filepath.Join(dir, "shot.webp")
	if err := f.Save(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Save(.webp) = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("a file was created for a rejected format")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected save left %d files behind", len(entries))
	}
}

func TestFrameSavePNG(t *testing.T) {
	// One pure blue pixel in BGRA order.
	f := newFrame(1, 1, FormatBgra8, 0, 80, []byte{255, 0, 0, 255})

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := f.Save(path); err != nil {
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
