//go:build windows

package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// JPEG XR encoding goes through the Windows Imaging Component. go-ole
// handles apartment setup and factory activation; the WIC interfaces have
// no IDispatch, so the method calls themselves go straight through the
// vtables.
var (
	clsidWICImagingFactory = ole.NewGUID("{CACAF262-9370-4615-A13B-9F5539DA4C0A}")
	iidIWICImagingFactory  = ole.NewGUID("{EC5EC8A9-C395-4314-9C77-54D7A935FF70}")
	guidContainerWmp       = ole.NewGUID("{57A37CAA-367A-4540-916B-F183C5093A4B}")

	guidPixelFormat32bppBGRA     = ole.NewGUID("{6FDDC324-4E03-4BFE-B185-3D77768DC90F}")
	guidPixelFormat64bppRGBAHalf = ole.NewGUID("{6FDDC324-4E03-4BFE-B185-3D77768DC93A}")
)

const (
	wicFactoryCreateEncoder         = 8
	wicFactoryCreateStream          = 14
	wicStreamInitializeFromFilename = 15
	wicEncoderInitialize            = 3
	wicEncoderCreateNewFrame        = 10
	wicEncoderCommit                = 11
	wicFrameInitialize              = 3
	wicFrameSetSize                 = 4
	wicFrameSetPixelFormat          = 6
	wicFrameWritePixels             = 10
	wicFrameCommit                  = 12
	propertyBag2Write               = 4

	wicBitmapEncoderNoCache = 2
	propBag2TypeData        = 1
	genericWrite            = 0x40000000
)

type propBag2 struct {
	Type   uint32
	VT     uint16
	CfType uint16
	Hint   uint32
	Name   *uint16
	CLSID  ole.GUID
}

func wicCall(obj uintptr, idx int, args ...uintptr) (uintptr, error) {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
	ret, _, _ := syscall.SyscallN(fn, append([]uintptr{obj}, args...)...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("WIC vtable[%d] HRESULT 0x%08X", idx, uint32(ret))
	}
	return ret, nil
}

func wicRelease(obj uintptr) {
	if obj == 0 {
		return
	}
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + 2*unsafe.Sizeof(uintptr(0))))
	syscall.SyscallN(fn, obj)
}

func saveJXR(path string, src Source) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close() // WIC reopens it by name and truncates

	if err := writeJXR(tmpPath, src); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeJXR(path string, src Source) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		if oleErr, ok := err.(*ole.OleError); !ok || (oleErr.Code() != 0 && oleErr.Code() != 1) {
			return fmt.Errorf("initialize COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := ole.CreateInstance(clsidWICImagingFactory, iidIWICImagingFactory)
	if err != nil {
		return fmt.Errorf("create WIC factory: %w", err)
	}
	defer unknown.Release()
	factory := uintptr(unsafe.Pointer(unknown))

	var stream uintptr
	if _, err := wicCall(factory, wicFactoryCreateStream,
		uintptr(unsafe.Pointer(&stream))); err != nil {
		return fmt.Errorf("create WIC stream: %w", err)
	}
	defer wicRelease(stream)

	wpath, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}
	if _, err := wicCall(stream, wicStreamInitializeFromFilename,
		uintptr(unsafe.Pointer(wpath)), genericWrite); err != nil {
		return fmt.Errorf("open %s for WIC: %w", path, err)
	}

	var encoder uintptr
	if _, err := wicCall(factory, wicFactoryCreateEncoder,
		uintptr(unsafe.Pointer(guidContainerWmp)), 0,
		uintptr(unsafe.Pointer(&encoder))); err != nil {
		return fmt.Errorf("create JPEG XR encoder: %w", err)
	}
	defer wicRelease(encoder)

	if _, err := wicCall(encoder, wicEncoderInitialize,
		stream, wicBitmapEncoderNoCache); err != nil {
		return fmt.Errorf("initialize JPEG XR encoder: %w", err)
	}

	var frame, bag uintptr
	if _, err := wicCall(encoder, wicEncoderCreateNewFrame,
		uintptr(unsafe.Pointer(&frame)), uintptr(unsafe.Pointer(&bag))); err != nil {
		return fmt.Errorf("create encoder frame: %w", err)
	}
	defer wicRelease(frame)
	defer wicRelease(bag)

	// Lossless on: jxr output exists to preserve exact pixels.
	name, err := syscall.UTF16PtrFromString("Lossless")
	if err != nil {
		return err
	}
	prop := propBag2{Type: propBag2TypeData, VT: uint16(ole.VT_BOOL), Name: name}
	lossless := ole.VARIANT{VT: ole.VT_BOOL, Val: -1}
	if _, err := wicCall(bag, propertyBag2Write, 1,
		uintptr(unsafe.Pointer(&prop)), uintptr(unsafe.Pointer(&lossless))); err != nil {
		return fmt.Errorf("enable lossless: %w", err)
	}

	if _, err := wicCall(frame, wicFrameInitialize, bag); err != nil {
		return fmt.Errorf("initialize frame: %w", err)
	}
	if _, err := wicCall(frame, wicFrameSetSize,
		uintptr(uint32(src.Width)), uintptr(uint32(src.Height))); err != nil {
		return fmt.Errorf("set frame size: %w", err)
	}

	want := guidPixelFormat32bppBGRA
	buf := src.BGRA8
	stride := src.Width * 4
	if src.RGBAHalf != nil {
		want = guidPixelFormat64bppRGBAHalf
		buf = src.RGBAHalf
		stride = src.Width * 8
	}
	// SetPixelFormat negotiates in place; anything but an exact match
	// would mean a silent conversion, which defeats lossless.
	pf := *want
	if _, err := wicCall(frame, wicFrameSetPixelFormat,
		uintptr(unsafe.Pointer(&pf))); err != nil {
		return fmt.Errorf("set pixel format: %w", err)
	}
	if !ole.IsEqualGUID(&pf, want) {
		return fmt.Errorf("JPEG XR encoder cannot store this pixel format losslessly")
	}

	if _, err := wicCall(frame, wicFrameWritePixels,
		uintptr(uint32(src.Height)), uintptr(uint32(stride)),
		uintptr(uint32(len(buf))), uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}
	if _, err := wicCall(frame, wicFrameCommit); err != nil {
		return fmt.Errorf("commit frame: %w", err)
	}
	if _, err := wicCall(encoder, wicEncoderCommit); err != nil {
		return fmt.Errorf("commit container: %w", err)
	}
	return nil
}
