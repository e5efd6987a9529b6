//go:build windows

package capture

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modgdi32 = windows.NewLazySystemDLL("gdi32.dll")

	procGetDC                  = moduser32.NewProc("GetDC")
	procReleaseDC              = moduser32.NewProc("ReleaseDC")
	procEnumDisplayDevicesW    = moduser32.NewProc("EnumDisplayDevicesW")
	procCreateDCW              = modgdi32.NewProc("CreateDCW")
	procDeleteDC               = modgdi32.NewProc("DeleteDC")
	procCreateCompatibleDC     = modgdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = modgdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = modgdi32.NewProc("SelectObject")
	procDeleteObject           = modgdi32.NewProc("DeleteObject")
	procBitBlt                 = modgdi32.NewProc("BitBlt")
	procGetDIBits              = modgdi32.NewProc("GetDIBits")
	procGetDeviceCaps          = modgdi32.NewProc("GetDeviceCaps")
)

const (
	srcCopy    = 0x00CC0020
	captureBlt = 0x40000000

	gdiHorzRes = 8
	gdiVertRes = 10

	dibRGBColors = 0

	displayDeviceAttached = 0x1
)

type displayDeviceW struct {
	Cb           uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// gdiEngine is the 8-bit fallback used when desktop duplication cannot be
// created, which happens over RDP and in VMs without a WDDM driver. It
// blits the monitor's display DC into a compatible bitmap and reads the
// bits back top-down. Only monitor targets and FormatBgra8 are served.
type gdiEngine struct {
	monitorIndex int
	whiteNits    float64

	screenDC      uintptr
	screenDCOwned bool // CreateDCW vs GetDC; each has its own teardown
	memDC         uintptr
	bitmap        uintptr
	oldBitmap     uintptr

	width, height int

	releaseOnce sync.Once
}

func newGdiEngine(monitorIndex int, whiteNits float64) (*gdiEngine, error) {
	e := &gdiEngine{monitorIndex: monitorIndex, whiteNits: whiteNits}
	if err := e.acquireHandles(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *gdiEngine) acquireHandles() error {
	var dd displayDeviceW
	dd.Cb = uint32(unsafe.Sizeof(dd))
	ok, _, _ := procEnumDisplayDevicesW.Call(0, uintptr(e.monitorIndex),
		uintptr(unsafe.Pointer(&dd)), 0)
	if ok == 0 {
		return fmt.Errorf("%w: monitor index %d out of range", ErrTargetNotFound, e.monitorIndex)
	}
	if dd.StateFlags&displayDeviceAttached == 0 {
		return fmt.Errorf("%w: monitor %d is not attached to the desktop", ErrTargetNotFound, e.monitorIndex)
	}

	dc, _, _ := procCreateDCW.Call(0, uintptr(unsafe.Pointer(&dd.DeviceName[0])), 0, 0)
	if dc != 0 {
		e.screenDC = dc
		e.screenDCOwned = true
	} else if e.monitorIndex == 0 {
		// Some restricted desktops refuse CreateDC but still hand out the
		// shared screen DC, which covers the primary monitor.
		dc, _, _ = procGetDC.Call(0)
		if dc == 0 {
			return fmt.Errorf("%w: no display DC available", ErrCaptureFailure)
		}
		e.screenDC = dc
	} else {
		return fmt.Errorf("%w: CreateDC failed for monitor %d", ErrCaptureFailure, e.monitorIndex)
	}

	w, _, _ := procGetDeviceCaps.Call(e.screenDC, gdiHorzRes)
	h, _, _ := procGetDeviceCaps.Call(e.screenDC, gdiVertRes)
	e.width, e.height = int(w), int(h)
	if e.width <= 0 || e.height <= 0 {
		e.releaseHandles()
		return fmt.Errorf("%w: display DC reports %dx%d", ErrCaptureFailure, e.width, e.height)
	}

	memDC, _, _ := procCreateCompatibleDC.Call(e.screenDC)
	if memDC == 0 {
		e.releaseHandles()
		return fmt.Errorf("%w: CreateCompatibleDC failed", ErrCaptureFailure)
	}
	e.memDC = memDC

	bmp, _, _ := procCreateCompatibleBitmap.Call(e.screenDC, w, h)
	if bmp == 0 {
		e.releaseHandles()
		return fmt.Errorf("%w: CreateCompatibleBitmap %dx%d failed", ErrCaptureFailure, e.width, e.height)
	}
	e.bitmap = bmp
	e.oldBitmap, _, _ = procSelectObject.Call(e.memDC, e.bitmap)
	return nil
}

func (e *gdiEngine) releaseHandles() {
	if e.memDC != 0 && e.oldBitmap != 0 {
		procSelectObject.Call(e.memDC, e.oldBitmap)
		e.oldBitmap = 0
	}
	if e.bitmap != 0 {
		procDeleteObject.Call(e.bitmap)
		e.bitmap = 0
	}
	if e.memDC != 0 {
		procDeleteDC.Call(e.memDC)
		e.memDC = 0
	}
	if e.screenDC != 0 {
		if e.screenDCOwned {
			procDeleteDC.Call(e.screenDC)
		} else {
			procReleaseDC.Call(0, e.screenDC)
		}
		e.screenDC = 0
	}
}

func (e *gdiEngine) rebuild() error {
	e.releaseHandles()
	return e.acquireHandles()
}

func (e *gdiEngine) blit() ([]byte, error) {
	// CAPTUREBLT picks up layered windows at the cost of a cursor
	// flicker; retry without it for drivers that reject the flag.
	ok, _, _ := procBitBlt.Call(e.memDC, 0, 0, uintptr(e.width), uintptr(e.height),
		e.screenDC, 0, 0, srcCopy|captureBlt)
	if ok == 0 {
		ok, _, _ = procBitBlt.Call(e.memDC, 0, 0, uintptr(e.width), uintptr(e.height),
			e.screenDC, 0, 0, srcCopy)
	}
	if ok == 0 {
		return nil, fmt.Errorf("%w: BitBlt failed", ErrCaptureFailure)
	}

	hdr := bitmapInfoHeader{
		Size:     uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		Width:    int32(e.width),
		Height:   -int32(e.height), // negative = top-down rows
		Planes:   1,
		BitCount: 32,
	}
	buf := make([]byte, e.width*e.height*4)
	lines, _, _ := procGetDIBits.Call(e.memDC, e.bitmap, 0, uintptr(e.height),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&hdr)), dibRGBColors)
	if int(lines) != e.height {
		return nil, fmt.Errorf("%w: GetDIBits returned %d of %d rows", ErrCaptureFailure, lines, e.height)
	}

	// GDI leaves alpha at zero; desktop pixels are opaque.
	for i := 3; i < len(buf); i += 4 {
		buf[i] = 0xFF
	}
	return buf, nil
}

func (e *gdiEngine) capture() (*Frame, error) {
	buf, err := e.blit()
	if err != nil {
		// Stale handles after a display change are the usual cause; one
		// rebuild, then give up.
		if rerr := e.rebuild(); rerr != nil {
			return nil, rerr
		}
		if buf, err = e.blit(); err != nil {
			return nil, err
		}
	}
	return newFrame(e.width, e.height, FormatBgra8, nowSeconds(), e.whiteNits, buf), nil
}

// grab has no latency edge over capture here: BitBlt always reads the
// live surface.
func (e *gdiEngine) grab() (*Frame, error) {
	return e.capture()
}

// hdrActive is false by construction: this engine only exists where the
// modern display path, and with it HDR, is absent.
func (e *gdiEngine) hdrActive() (bool, error) {
	return false, nil
}

func (e *gdiEngine) release() {
	e.releaseOnce.Do(e.releaseHandles)
}
