//go:build windows

package capture

import (
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	moduser32 = windows.NewLazySystemDLL("user32.dll")

	procGetDisplayConfigBufferSizes = moduser32.NewProc("GetDisplayConfigBufferSizes")
	procQueryDisplayConfig          = moduser32.NewProc("QueryDisplayConfig")
	procDisplayConfigGetDeviceInfo  = moduser32.NewProc("DisplayConfigGetDeviceInfo")
)

// defaultSDRWhiteNits is the sRGB reference white, used whenever the OS
// query fails or reports nothing.
const defaultSDRWhiteNits = 80.0

const (
	qdcOnlyActivePaths = 2

	deviceInfoGetSourceName    = 1
	deviceInfoGetSDRWhiteLevel = 11
)

type winLUID struct {
	LowPart  uint32
	HighPart int32
}

type displayConfigPathSourceInfo struct {
	AdapterID   winLUID
	ID          uint32
	ModeInfoIdx uint32
	StatusFlags uint32
}

type displayConfigPathTargetInfo struct {
	AdapterID        winLUID
	ID               uint32
	ModeInfoIdx      uint32
	OutputTechnology uint32
	Rotation         uint32
	Scaling          uint32
	RefreshRateNum   uint32
	RefreshRateDen   uint32
	ScanLineOrdering uint32
	TargetAvailable  int32
	StatusFlags      uint32
}

type displayConfigPathInfo struct {
	Source displayConfigPathSourceInfo
	Target displayConfigPathTargetInfo
	Flags  uint32
}

type displayConfigModeInfo struct {
	InfoType  uint32
	ID        uint32
	AdapterID winLUID
	// Union of source and target mode data; opaque here.
	Data [48]byte
}

type displayConfigDeviceInfoHeader struct {
	Type      uint32
	Size      uint32
	AdapterID winLUID
	ID        uint32
}

type displayConfigSourceDeviceName struct {
	Header            displayConfigDeviceInfoHeader
	ViewGDIDeviceName [32]uint16
}

type displayConfigSDRWhiteLevel struct {
	Header        displayConfigDeviceInfoHeader
	SDRWhiteLevel uint32
}

// sdrWhiteNitsForDevice maps a GDI device name such as "\\.\DISPLAY1" to
// that display's SDR white level in nits. Windows stores the level in
// thousandths of the 80-nit sRGB reference. Any failure along the path
// yields the 80-nit default; white level only shifts tone mapping, so a
// conservative answer beats a hard error.
func sdrWhiteNitsForDevice(deviceName [32]uint16) float64 {
	want := windows.UTF16ToString(deviceName[:])
	if want == "" {
		return defaultSDRWhiteNits
	}

	var pathCount, modeCount uint32
	ret, _, _ := procGetDisplayConfigBufferSizes.Call(
		qdcOnlyActivePaths,
		uintptr(unsafe.Pointer(&pathCount)),
		uintptr(unsafe.Pointer(&modeCount)),
	)
	if ret != 0 || pathCount == 0 {
		return defaultSDRWhiteNits
	}

	paths := make([]displayConfigPathInfo, pathCount)
	modes := make([]displayConfigModeInfo, modeCount+1)
	ret, _, _ = procQueryDisplayConfig.Call(
		qdcOnlyActivePaths,
		uintptr(unsafe.Pointer(&pathCount)),
		uintptr(unsafe.Pointer(&paths[0])),
		uintptr(unsafe.Pointer(&modeCount)),
		uintptr(unsafe.Pointer(&modes[0])),
		0, // topology id, must be null for active-path queries
	)
	if ret != 0 {
		return defaultSDRWhiteNits
	}

	for _, p := range paths[:pathCount] {
		var name displayConfigSourceDeviceName
		name.Header = displayConfigDeviceInfoHeader{
			Type:      deviceInfoGetSourceName,
			Size:      uint32(unsafe.Sizeof(name)),
			AdapterID: p.Source.AdapterID,
			ID:        p.Source.ID,
		}
		ret, _, _ = procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&name)))
		if ret != 0 {
			continue
		}
		if !strings.EqualFold(windows.UTF16ToString(name.ViewGDIDeviceName[:]), want) {
			continue
		}

		var wl displayConfigSDRWhiteLevel
		wl.Header = displayConfigDeviceInfoHeader{
			Type:      deviceInfoGetSDRWhiteLevel,
			Size:      uint32(unsafe.Sizeof(wl)),
			AdapterID: p.Target.AdapterID,
			ID:        p.Target.ID,
		}
		ret, _, _ = procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&wl)))
		if ret != 0 || wl.SDRWhiteLevel == 0 {
			return defaultSDRWhiteNits
		}
		return float64(wl.SDRWhiteLevel) * 80.0 / 1000.0
	}
	return defaultSDRWhiteNits
}
