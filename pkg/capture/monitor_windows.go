//go:build windows

package capture

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Monitors enumerates attached displays in DXGI output order, the same
// order MonitorSelector indexes. Index 0 is the primary display.
func Monitors() ([]MonitorInfo, error) {
	device, context, err := createD3DDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	defer comRelease(context)
	defer comRelease(device)

	dxgiDevice, err := comQueryInterface(device, &iidIDXGIDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: query IDXGIDevice: %v", ErrCaptureFailure, err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, vtblDXGIDeviceGetAdapter,
		uintptr(unsafe.Pointer(&adapter))); err != nil {
		return nil, fmt.Errorf("%w: IDXGIDevice::GetAdapter: %v", ErrCaptureFailure, err)
	}
	defer comRelease(adapter)

	var infos []MonitorInfo
	for i := 0; i < 32; i++ {
		var output uintptr
		hr := comCallHR(adapter, vtblDXGIAdapterEnumOutputs,
			uintptr(i), uintptr(unsafe.Pointer(&output)))
		if uint32(hr) == dxgiErrNotFound {
			break
		}
		if hrFailed(hr) || output == 0 {
			return nil, fmt.Errorf("%w: IDXGIAdapter::EnumOutputs(%d): HRESULT 0x%08X",
				ErrCaptureFailure, i, uint32(hr))
		}

		var desc dxgiOutputDesc
		_, descErr := comCall(output, vtblDXGIOutputGetDesc, uintptr(unsafe.Pointer(&desc)))
		if descErr != nil || desc.AttachedToDesktop == 0 {
			comRelease(output)
			continue
		}

		hdr := false
		if desc1, ok := outputColorDesc(output); ok {
			hdr = desc1.ColorSpace == dxgiColorSpaceHDR10
		}
		comRelease(output)

		coords := desc.DesktopCoordinates
		infos = append(infos, MonitorInfo{
			Index:     i,
			Device:    windows.UTF16ToString(desc.DeviceName[:]),
			Width:     int(coords.Right - coords.Left),
			Height:    int(coords.Bottom - coords.Top),
			Left:      int(coords.Left),
			Top:       int(coords.Top),
			Primary:   coords.Left == 0 && coords.Top == 0,
			HDRActive: hdr,
			WhiteNits: sdrWhiteNitsForDevice(desc.DeviceName),
		})
	}
	return infos, nil
}
