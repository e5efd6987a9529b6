package imaging

import (
	"bytes"
	"image"
	"sync"
)

// maxPooledBuffer caps what goes back into the encode buffer pool.
// Anything larger is let go so one oversized save does not pin memory for
// the life of the process.
const maxPooledBuffer = 64 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// imagePool recycles NRGBA rasters between saves. Parallel encodes of the
// same frame all want the same resolution, so the pool is keyed to one
// size and resets when the resolution changes.
type imagePool struct {
	mu   sync.Mutex
	pool sync.Pool
	w, h int
}

var rasterPool imagePool

func (p *imagePool) get(w, h int) *image.NRGBA {
	p.mu.Lock()
	if p.w != w || p.h != h {
		p.pool = sync.Pool{}
		p.w, p.h = w, h
	}
	p.mu.Unlock()

	if img, ok := p.pool.Get().(*image.NRGBA); ok &&
		img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func (p *imagePool) put(img *image.NRGBA) {
	if img == nil {
		return
	}
	p.mu.Lock()
	match := img.Rect.Dx() == p.w && img.Rect.Dy() == p.h
	p.mu.Unlock()
	if match {
		p.pool.Put(img)
	}
}
