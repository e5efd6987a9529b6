//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	modd3d11              = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = modd3d11.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dDriverTypeWarp     = 5

	d3d11SDKVersion              = 7
	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	d3d11MapRead       = 1

	dxgiFormatB8G8R8A8Unorm = 87
	dxgiFormatR16G16B16A16F = 10

	// DXGI_MODE_ROTATION values.
	dxgiRotationIdentity  = 1
	dxgiRotationRotate90  = 2
	dxgiRotationRotate180 = 3
	dxgiRotationRotate270 = 4

	// HDR10 signaling: DXGI_COLOR_SPACE_RGB_FULL_G2084_NONE_P2020.
	dxgiColorSpaceHDR10 = 12

	dxgiErrNotFound      = 0x887A0002
	dxgiErrInvalidCall   = 0x887A0001
	dxgiErrDeviceRemoved = 0x887A0005
	dxgiErrDeviceReset   = 0x887A0007
	dxgiErrAccessLost    = 0x887A0026
	dxgiErrWaitTimeout   = 0x887A0027
	dxgiErrUnsupported   = 0x887A0004
)

// Vtable method slots for the interfaces the duplication pipeline touches.
const (
	vtblDXGIDeviceGetAdapter     = 7
	vtblDXGIAdapterEnumOutputs   = 7
	vtblDXGIOutputGetDesc        = 7
	vtblDXGIOutput1Duplicate     = 22
	vtblDXGIOutput5Duplicate1    = 26
	vtblDXGIOutput6GetDesc1      = 27
	vtblDuplGetDesc              = 7
	vtblDuplAcquireNextFrame     = 8
	vtblDuplReleaseFrame         = 14
	vtblD3DDeviceCreateTexture2D = 5
	vtblD3DContextMap            = 14
	vtblD3DContextUnmap          = 15
	vtblD3DContextCopyResource   = 47
	vtblTexture2DGetDesc         = 10
)

var (
	iidIDXGIDevice = comGUID{0x54ec77fa, 0x1377, 0x44e6,
		[8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIOutput1 = comGUID{0x00cddea8, 0x939b, 0x4b83,
		[8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidIDXGIOutput5 = comGUID{0x80a07424, 0xab52, 0x42eb,
		[8]byte{0x83, 0x3c, 0x0c, 0x42, 0xfd, 0x28, 0x2d, 0x98}}
	iidIDXGIOutput6 = comGUID{0x068346e8, 0xaaec, 0x4b84,
		[8]byte{0xad, 0xd7, 0x13, 0x7f, 0x51, 0x3f, 0x77, 0xa1}}
	iidID3D11Texture2D = comGUID{0x6f15aaf2, 0xd208, 0x4e89,
		[8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type dxgiOutputDesc struct {
	DeviceName         [32]uint16
	DesktopCoordinates winRect
	AttachedToDesktop  int32
	Rotation           uint32
	Monitor            uintptr
}

// dxgiOutputDesc1 extends the output description with color capabilities
// (IDXGIOutput6::GetDesc1).
type dxgiOutputDesc1 struct {
	DeviceName            [32]uint16
	DesktopCoordinates    winRect
	AttachedToDesktop     int32
	Rotation              uint32
	Monitor               uintptr
	BitsPerColor          uint32
	ColorSpace            uint32
	RedPrimary            [2]float32
	GreenPrimary          [2]float32
	BluePrimary           [2]float32
	WhitePoint            [2]float32
	MinLuminance          float32
	MaxLuminance          float32
	MaxFullFrameLuminance float32
}

type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRateNum   uint32
	RefreshRateDen   uint32
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

type dxgiOutduplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32
}

type dxgiOutduplPointerPosition struct {
	X       int32
	Y       int32
	Visible int32
}

type dxgiOutduplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPosition           dxgiOutduplPointerPosition
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// createD3DDevice creates a hardware D3D11 device with BGRA support,
// falling back to the WARP software rasterizer for headless and virtual
// machines without a usable GPU.
func createD3DDevice() (device, context uintptr, err error) {
	for _, driverType := range []uintptr{d3dDriverTypeHardware, d3dDriverTypeWarp} {
		var featureLevel uint32
		hr, _, _ := procD3D11CreateDevice.Call(
			0, // default adapter
			driverType,
			0, // no software module
			uintptr(d3d11CreateDeviceBGRASupport),
			0, 0, // let the runtime pick a feature level
			uintptr(d3d11SDKVersion),
			uintptr(unsafe.Pointer(&device)),
			uintptr(unsafe.Pointer(&featureLevel)),
			uintptr(unsafe.Pointer(&context)),
		)
		if !hrFailed(hr) && device != 0 {
			return device, context, nil
		}
		err = fmt.Errorf("D3D11CreateDevice (driver type %d) failed: 0x%08X", driverType, uint32(hr))
	}
	return 0, 0, err
}

// dxgiOutputByIndex walks device -> adapter -> output index and returns
// the output with its description. The intermediate adapter is released;
// the returned output is owned by the caller.
func dxgiOutputByIndex(device uintptr, index int) (uintptr, dxgiOutputDesc, error) {
	var desc dxgiOutputDesc

	dxgiDevice, err := comQueryInterface(device, &iidIDXGIDevice)
	if err != nil {
		return 0, desc, fmt.Errorf("query IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, vtblDXGIDeviceGetAdapter,
		uintptr(unsafe.Pointer(&adapter))); err != nil {
		return 0, desc, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comRelease(adapter)

	var output uintptr
	hr := comCallHR(adapter, vtblDXGIAdapterEnumOutputs,
		uintptr(index), uintptr(unsafe.Pointer(&output)))
	if uint32(hr) == dxgiErrNotFound || output == 0 {
		return 0, desc, fmt.Errorf("%w: monitor index %d out of range", ErrTargetNotFound, index)
	}
	if hrFailed(hr) {
		return 0, desc, fmt.Errorf("IDXGIAdapter::EnumOutputs(%d): HRESULT 0x%08X", index, uint32(hr))
	}

	if _, err := comCall(output, vtblDXGIOutputGetDesc,
		uintptr(unsafe.Pointer(&desc))); err != nil {
		comRelease(output)
		return 0, desc, fmt.Errorf("IDXGIOutput::GetDesc: %w", err)
	}
	return output, desc, nil
}

// outputColorDesc queries the extended color description when the output
// supports IDXGIOutput6 (Windows 10 1703+). ok is false on older systems.
func outputColorDesc(output uintptr) (dxgiOutputDesc1, bool) {
	var desc1 dxgiOutputDesc1
	output6, err := comQueryInterface(output, &iidIDXGIOutput6)
	if err != nil {
		return desc1, false
	}
	defer comRelease(output6)
	if _, err := comCall(output6, vtblDXGIOutput6GetDesc1,
		uintptr(unsafe.Pointer(&desc1))); err != nil {
		return desc1, false
	}
	return desc1, true
}

// monitorColorInfo reports the live HDR state and SDR white level of one
// monitor using a short-lived device. Used at session open, for the live
// IsHDR query, and by Monitors.
func monitorColorInfo(index int) (hdrActive bool, whiteNits float64, desc dxgiOutputDesc, err error) {
	device, context, err := createD3DDevice()
	if err != nil {
		return false, defaultSDRWhiteNits, desc, err
	}
	defer comRelease(context)
	defer comRelease(device)

	output, desc, err := dxgiOutputByIndex(device, index)
	if err != nil {
		return false, defaultSDRWhiteNits, desc, err
	}
	defer comRelease(output)

	if desc1, ok := outputColorDesc(output); ok {
		hdrActive = desc1.ColorSpace == dxgiColorSpaceHDR10
	}
	whiteNits = sdrWhiteNitsForDevice(desc.DeviceName)
	return hdrActive, whiteNits, desc, nil
}
