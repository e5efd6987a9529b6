//go:build windows

package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/breeze-rmm/hdrcap/internal/logging"
)

const (
	// firstFrameTimeout bounds the wait for a duplication that has not
	// delivered anything yet; a fresh duplication replays the desktop
	// well inside this.
	firstFrameTimeout = time.Second

	// freshFrameTimeout is how long a warm capture waits before
	// concluding the desktop is static and the cached image is current.
	freshFrameTimeout = 50 * time.Millisecond

	// reinitLimit caps duplication rebuilds within a single call. Mode
	// switches and full-screen transitions invalidate the duplication a
	// couple of times in a row; anything beyond that is a real failure.
	reinitLimit = 3
)

// openEngine negotiates the pixel format against the target's live state
// and builds the capture backend: DXGI desktop duplication, with a GDI
// fallback for 8-bit monitor sessions on systems where duplication is
// unavailable (RDP sessions, some VMs).
func openEngine(t Target, o Options) (engine, PixelFormat, int, int, error) {
	hdr := false
	nits := defaultSDRWhiteNits
	hdrLive, liveNits, _, cerr := monitorColorInfo(t.MonitorIndex)
	if cerr == nil {
		hdr, nits = hdrLive, liveNits
	} else if errors.Is(cerr, ErrTargetNotFound) {
		return nil, FormatBgra8, 0, 0, cerr
	}
	if o.SDRWhiteNits > 0 {
		nits = o.SDRWhiteNits
	}

	format := negotiate(o.Mode, hdr, o.emit)

	eng, err := newDxgiEngine(t, format, nits)
	if err == nil {
		w, h, serr := eng.frameSize()
		if serr != nil {
			eng.release()
			return nil, format, 0, 0, serr
		}
		return eng, format, w, h, nil
	}
	if errors.Is(err, ErrTargetNotFound) {
		return nil, format, 0, 0, err
	}

	if format == FormatBgra8 && t.Kind == TargetMonitor {
		o.emit(Diagnostic{
			Code:    DiagDuplicationFallback,
			Message: "desktop duplication unavailable; using slower GDI capture",
		})
		gdi, gerr := newGdiEngine(t.MonitorIndex, nits)
		if gerr == nil {
			return gdi, format, gdi.width, gdi.height, nil
		}
		logging.L("capture").Warn("gdi fallback failed", logging.KeyError, gerr)
	}
	return nil, format, 0, 0, err
}

// dxgiEngine captures through DXGI desktop duplication. All methods are
// called with the owning session's lock held.
type dxgiEngine struct {
	target    Target
	format    PixelFormat
	whiteNits float64
	log       *slog.Logger

	device      uintptr
	context     uintptr
	duplication uintptr
	staging     uintptr
	outDesc     dxgiOutputDesc

	// Desktop-space dimensions; crop rectangles live in this space.
	width, height int
	// Native surface dimensions as the duplication delivers them; they
	// differ from width/height on rotated monitors.
	texW, texH int
	rotation   uint32

	// cache holds the last full-monitor readback in desktop layout. Once
	// warm it always reflects the latest content the compositor
	// presented, which is what makes timed-out acquires servable.
	cache []byte
	warm  bool

	releaseOnce sync.Once
}

func newDxgiEngine(t Target, format PixelFormat, whiteNits float64) (*dxgiEngine, error) {
	e := &dxgiEngine{
		target:    t,
		format:    format,
		whiteNits: whiteNits,
		log:       logging.L("capture"),
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *dxgiEngine) init() error {
	device, context, err := createD3DDevice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}

	output, desc, err := dxgiOutputByIndex(device, e.target.MonitorIndex)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return err
	}
	defer comRelease(output)

	var dup uintptr
	if e.format == FormatRgba16f {
		// Float output needs DuplicateOutput1 so the duplication hands
		// back scRGB surfaces instead of the display's scanout format.
		output5, qerr := comQueryInterface(output, &iidIDXGIOutput5)
		if qerr != nil {
			comRelease(context)
			comRelease(device)
			return fmt.Errorf("%w: float capture needs IDXGIOutput5: %v", ErrCaptureFailure, qerr)
		}
		formats := [1]uint32{dxgiFormatR16G16B16A16F}
		_, err = comCall(output5, vtblDXGIOutput5Duplicate1,
			device, 0, 1,
			uintptr(unsafe.Pointer(&formats[0])),
			uintptr(unsafe.Pointer(&dup)))
		comRelease(output5)
	} else {
		var output1 uintptr
		output1, err = comQueryInterface(output, &iidIDXGIOutput1)
		if err == nil {
			_, err = comCall(output1, vtblDXGIOutput1Duplicate,
				device, uintptr(unsafe.Pointer(&dup)))
			comRelease(output1)
		}
	}
	if err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("%w: duplicate output %d: %v", ErrCaptureFailure, e.target.MonitorIndex, err)
	}

	var dupDesc dxgiOutduplDesc
	comCallHR(dup, vtblDuplGetDesc, uintptr(unsafe.Pointer(&dupDesc))) // void method

	e.texW = int(dupDesc.ModeDesc.Width)
	e.texH = int(dupDesc.ModeDesc.Height)
	e.rotation = dupDesc.Rotation
	coords := desc.DesktopCoordinates
	e.width = int(coords.Right - coords.Left)
	e.height = int(coords.Bottom - coords.Top)
	if e.width <= 0 || e.height <= 0 {
		// Detached output mid-teardown.
		e.width, e.height = e.texW, e.texH
	}

	surfaceFormat := uint32(dxgiFormatB8G8R8A8Unorm)
	if e.format == FormatRgba16f {
		surfaceFormat = dxgiFormatR16G16B16A16F
	}
	texDesc := d3d11Texture2DDesc{
		Width:          uint32(e.texW),
		Height:         uint32(e.texH),
		MipLevels:      1,
		ArraySize:      1,
		Format:         surfaceFormat,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	var staging uintptr
	if _, err := comCall(device, vtblD3DDeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&texDesc)), 0,
		uintptr(unsafe.Pointer(&staging))); err != nil {
		comRelease(dup)
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("%w: create staging texture: %v", ErrCaptureFailure, err)
	}

	e.device = device
	e.context = context
	e.duplication = dup
	e.staging = staging
	e.outDesc = desc
	e.cache = make([]byte, e.width*e.height*e.format.BytesPerPixel())
	e.warm = false
	return nil
}

func (e *dxgiEngine) releaseResources() {
	comRelease(e.staging)
	e.staging = 0
	comRelease(e.duplication)
	e.duplication = 0
	comRelease(e.context)
	e.context = 0
	comRelease(e.device)
	e.device = 0
}

func (e *dxgiEngine) release() {
	e.releaseOnce.Do(e.releaseResources)
}

// reinit rebuilds the whole pipeline after the compositor invalidated the
// duplication (display mode switch, full-screen transition, desktop
// switch). The cache is discarded: content from before the invalidation
// is not trustworthy.
func (e *dxgiEngine) reinit() error {
	e.releaseResources()
	if err := e.init(); err != nil {
		if errors.Is(err, ErrCaptureFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	return nil
}

// tryAcquire polls the duplication once. acquired reports whether the
// cache now holds a newer image; recoverable flags errors that a
// duplication rebuild can fix.
func (e *dxgiEngine) tryAcquire(timeout time.Duration) (acquired, recoverable bool, err error) {
	var frameInfo dxgiOutduplFrameInfo
	var resource uintptr
	hr := comCallHR(e.duplication, vtblDuplAcquireNextFrame,
		uintptr(timeout.Milliseconds()),
		uintptr(unsafe.Pointer(&frameInfo)),
		uintptr(unsafe.Pointer(&resource)))
	switch uint32(hr) {
	case 0:
	case dxgiErrWaitTimeout:
		return false, false, nil
	case dxgiErrAccessLost, dxgiErrInvalidCall, dxgiErrDeviceRemoved, dxgiErrDeviceReset:
		return false, true, fmt.Errorf("duplication lost: HRESULT 0x%08X", uint32(hr))
	default:
		if hrFailed(hr) {
			return false, false, fmt.Errorf("%w: AcquireNextFrame: HRESULT 0x%08X",
				ErrCaptureFailure, uint32(hr))
		}
	}
	defer comCallHR(e.duplication, vtblDuplReleaseFrame)
	if resource == 0 {
		return false, false, nil
	}
	defer comRelease(resource)

	if e.warm && frameInfo.AccumulatedFrames == 0 && frameInfo.LastPresentTime == 0 {
		// Pointer-only update; the cache already matches the desktop.
		return false, false, nil
	}

	texture, qerr := comQueryInterface(resource, &iidID3D11Texture2D)
	if qerr != nil {
		return false, false, fmt.Errorf("%w: frame is not a texture: %v", ErrCaptureFailure, qerr)
	}
	defer comRelease(texture)

	comCallHR(e.context, vtblD3DContextCopyResource, e.staging, texture) // void method

	if err := e.readback(); err != nil {
		return false, false, err
	}
	e.warm = true
	return true, false, nil
}

func (e *dxgiEngine) readback() error {
	var mapped d3d11MappedSubresource
	if _, err := comCall(e.context, vtblD3DContextMap,
		e.staging, 0, d3d11MapRead, 0,
		uintptr(unsafe.Pointer(&mapped))); err != nil {
		return fmt.Errorf("%w: map staging texture: %v", ErrCaptureFailure, err)
	}
	defer comCallHR(e.context, vtblD3DContextUnmap, e.staging, 0)

	bpp := e.format.BytesPerPixel()
	rowPitch := int(mapped.RowPitch)
	src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), e.texH*rowPitch)

	if e.rotation == dxgiRotationRotate90 ||
		e.rotation == dxgiRotationRotate180 ||
		e.rotation == dxgiRotationRotate270 {
		e.copyRotated(src, rowPitch, bpp)
		return nil
	}
	tight := e.width * bpp
	if rowPitch == tight {
		copy(e.cache, src[:e.height*tight])
		return nil
	}
	for y := 0; y < e.height; y++ {
		copy(e.cache[y*tight:(y+1)*tight], src[y*rowPitch:y*rowPitch+tight])
	}
	return nil
}

// copyRotated undoes the panel rotation so the cache is always in desktop
// orientation.
func (e *dxgiEngine) copyRotated(src []byte, rowPitch, bpp int) {
	for oy := 0; oy < e.height; oy++ {
		for ox := 0; ox < e.width; ox++ {
			var nx, ny int
			switch e.rotation {
			case dxgiRotationRotate90:
				nx, ny = oy, e.texH-1-ox
			case dxgiRotationRotate180:
				nx, ny = e.texW-1-ox, e.texH-1-oy
			default: // 270
				nx, ny = e.texW-1-oy, ox
			}
			srcOff := ny*rowPitch + nx*bpp
			dstOff := (oy*e.width + ox) * bpp
			copy(e.cache[dstOff:dstOff+bpp], src[srcOff:srcOff+bpp])
		}
	}
}

// capture waits for content no older than the call. A timed-out acquire
// on a warm duplication proves the desktop did not change during the
// wait, so the cached image is exactly what is on screen.
func (e *dxgiEngine) capture() (*Frame, error) {
	timeout := freshFrameTimeout
	if !e.warm {
		timeout = firstFrameTimeout
	}
	reinits := 0
	for {
		acquired, recoverable, err := e.tryAcquire(timeout)
		if err != nil {
			if !recoverable {
				return nil, err
			}
			reinits++
			if reinits > reinitLimit {
				return nil, fmt.Errorf("%w: duplication kept invalidating: %v", ErrCaptureFailure, err)
			}
			e.log.Debug("rebuilding desktop duplication", logging.KeyError, err)
			if rerr := e.reinit(); rerr != nil {
				return nil, rerr
			}
			timeout = firstFrameTimeout
			continue
		}
		if acquired || e.warm {
			break
		}
		// Cold duplication delivered nothing: rebuild it, which forces a
		// replay of the current desktop image.
		reinits++
		if reinits > reinitLimit {
			return nil, fmt.Errorf("%w: no frame delivered within %s", ErrCaptureFailure, timeout)
		}
		if rerr := e.reinit(); rerr != nil {
			return nil, rerr
		}
		timeout = firstFrameTimeout
	}
	return e.snapshot()
}

// grab returns the freshest available content without waiting: one
// zero-timeout poll, then whatever the cache holds.
func (e *dxgiEngine) grab() (*Frame, error) {
	if !e.warm {
		return e.capture()
	}
	_, recoverable, err := e.tryAcquire(0)
	if err != nil {
		if !recoverable {
			return nil, err
		}
		if rerr := e.reinit(); rerr != nil {
			return nil, rerr
		}
		return e.capture()
	}
	return e.snapshot()
}

// snapshot materializes a Frame from the cache: a full copy for monitor
// targets, a cropped copy of the window's current client rectangle for
// window targets. Frames never alias the cache.
func (e *dxgiEngine) snapshot() (*Frame, error) {
	ts := nowSeconds()
	bpp := e.format.BytesPerPixel()

	if e.target.Kind == TargetWindow {
		region, err := e.windowRegion()
		if err != nil {
			return nil, err
		}
		w := int(region.Right - region.Left)
		h := int(region.Bottom - region.Top)
		left := int(region.Left - e.outDesc.DesktopCoordinates.Left)
		top := int(region.Top - e.outDesc.DesktopCoordinates.Top)

		buf := make([]byte, w*h*bpp)
		rowLen := w * bpp
		stride := e.width * bpp
		for y := 0; y < h; y++ {
			srcOff := (top+y)*stride + left*bpp
			copy(buf[y*rowLen:(y+1)*rowLen], e.cache[srcOff:srcOff+rowLen])
		}
		return newFrame(w, h, e.format, ts, e.whiteNits, buf), nil
	}

	buf := make([]byte, len(e.cache))
	copy(buf, e.cache)
	return newFrame(e.width, e.height, e.format, ts, e.whiteNits, buf), nil
}

// windowRegion is the window's current client rect clamped to the
// captured monitor. The rect is re-queried every frame so moves and
// resizes track live.
func (e *dxgiEngine) windowRegion() (winRect, error) {
	r, err := windowClientRect(e.target.Window)
	if err != nil {
		return r, err
	}
	mon := e.outDesc.DesktopCoordinates
	if r.Left < mon.Left {
		r.Left = mon.Left
	}
	if r.Top < mon.Top {
		r.Top = mon.Top
	}
	if r.Right > mon.Right {
		r.Right = mon.Right
	}
	if r.Bottom > mon.Bottom {
		r.Bottom = mon.Bottom
	}
	if r.Right <= r.Left || r.Bottom <= r.Top {
		return r, fmt.Errorf("%w: window 0x%X has no visible client area on the captured monitor",
			ErrCaptureFailure, e.target.Window)
	}
	return r, nil
}

func (e *dxgiEngine) frameSize() (int, int, error) {
	if e.target.Kind == TargetWindow {
		r, err := e.windowRegion()
		if err != nil {
			return 0, 0, err
		}
		return int(r.Right - r.Left), int(r.Bottom - r.Top), nil
	}
	return e.width, e.height, nil
}

// hdrActive re-queries the live display state. For window targets the
// monitor currently containing the window is consulted, so the answer
// tracks the window even though the pixel source stays the open-time
// monitor.
func (e *dxgiEngine) hdrActive() (bool, error) {
	idx := e.target.MonitorIndex
	if e.target.Kind == TargetWindow {
		if i, err := monitorIndexForWindow(e.target.Window); err == nil {
			idx = i
		}
	}
	hdr, _, _, err := monitorColorInfo(idx)
	if err != nil {
		if errors.Is(err, ErrCaptureFailure) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	return hdr, nil
}
