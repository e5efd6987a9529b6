package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotatesAtOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdrcap.log")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 2<<20), 0600); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("fresh\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fresh\n" {
		t.Fatalf("live log should hold only the new line, got %d bytes", len(data))
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected oversized file rotated to .1: %v", err)
	}
}

func TestRotatingWriterRotatesMidRunAndCapsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdrcap.log")
	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("y"), 700<<10)
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s to exist: %v", filepath.Base(name), err)
		}
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Fatalf("backup count capped at 2, but .3 exists")
	}
}
