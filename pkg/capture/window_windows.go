//go:build windows

package capture

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

var (
	procEnumWindows               = moduser32.NewProc("EnumWindows")
	procGetWindowTextW            = moduser32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW      = moduser32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId  = moduser32.NewProc("GetWindowThreadProcessId")
	procIsWindow                  = moduser32.NewProc("IsWindow")
	procIsWindowVisible           = moduser32.NewProc("IsWindowVisible")
	procIsIconic                  = moduser32.NewProc("IsIconic")
	procGetWindowLongW            = moduser32.NewProc("GetWindowLongW")
	procGetWindowRect             = moduser32.NewProc("GetWindowRect")
	procGetClientRect             = moduser32.NewProc("GetClientRect")
	procClientToScreen            = moduser32.NewProc("ClientToScreen")
	procMonitorFromWindow         = moduser32.NewProc("MonitorFromWindow")
	procSetProcessDpiAwarenessCtx = moduser32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDPIAware        = moduser32.NewProc("SetProcessDPIAware")

	moddwmapi                 = windows.NewLazySystemDLL("dwmapi.dll")
	procDwmGetWindowAttribute = moddwmapi.NewProc("DwmGetWindowAttribute")
)

const (
	gwlExstyle              = 0xFFFFFFEC // GWL_EXSTYLE (-20)
	wsExToolwindow          = 0x80
	monitorDefaultToNearest = 2
	dwmwaCloaked            = 14
)

type winPoint struct {
	X, Y int32
}

var dpiOnce sync.Once

// ensureDPIAware opts the process into per-monitor DPI awareness so window
// rectangles come back in physical pixels, matching the duplication
// surface. Without this a scaled display would produce shifted crops.
func ensureDPIAware() {
	dpiOnce.Do(func() {
		if procSetProcessDpiAwarenessCtx.Find() == nil {
			// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2
			if r, _, _ := procSetProcessDpiAwarenessCtx.Call(^uintptr(3)); r != 0 {
				return
			}
		}
		// Pre-1703 fallback; also fails harmlessly when a manifest
		// already set awareness.
		procSetProcessDPIAware.Call()
	})
}

// windowCandidate is one enumerated top-level window plus its ranking
// score.
type windowCandidate struct {
	handle     uintptr
	title      string
	pid        uint32
	visible    bool
	minimized  bool
	toolwindow bool
	width      int
	height     int
	score      int
}

var enumWindowsCallback = windows.NewCallback(func(hwnd, lparam uintptr) uintptr {
	handles := (*[]uintptr)(unsafe.Pointer(lparam))
	*handles = append(*handles, hwnd)
	return 1 // continue enumeration
})

// enumTopLevelWindows snapshots every top-level window with the attributes
// ranking needs. DWM-cloaked windows (backgrounded UWP apps) are skipped;
// they are not composited, so capturing them yields stale pixels.
func enumTopLevelWindows() ([]windowCandidate, error) {
	ensureDPIAware()

	var handles []uintptr
	r, _, err := procEnumWindows.Call(enumWindowsCallback, uintptr(unsafe.Pointer(&handles)))
	if r == 0 {
		return nil, fmt.Errorf("%w: EnumWindows: %v", ErrCaptureFailure, err)
	}

	cands := make([]windowCandidate, 0, len(handles))
	for _, h := range handles {
		if isCloaked(h) {
			continue
		}
		c := inspectWindow(h)
		c.score = rankScore(c)
		cands = append(cands, c)
	}
	return cands, nil
}

func inspectWindow(h uintptr) windowCandidate {
	c := windowCandidate{handle: h, title: windowTitle(h)}

	procGetWindowThreadProcessId.Call(h, uintptr(unsafe.Pointer(&c.pid)))

	v, _, _ := procIsWindowVisible.Call(h)
	c.visible = v != 0
	ic, _, _ := procIsIconic.Call(h)
	c.minimized = ic != 0
	style, _, _ := procGetWindowLongW.Call(h, gwlExstyle)
	c.toolwindow = uint32(style)&wsExToolwindow != 0

	var r winRect
	if ok, _, _ := procGetWindowRect.Call(h, uintptr(unsafe.Pointer(&r))); ok != 0 {
		c.width = int(r.Right - r.Left)
		c.height = int(r.Bottom - r.Top)
	}
	return c
}

func windowTitle(h uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(h)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(h, uintptr(unsafe.Pointer(&buf[0])), n+1)
	return windows.UTF16ToString(buf)
}

func isCloaked(h uintptr) bool {
	var cloaked uint32
	hr, _, _ := procDwmGetWindowAttribute.Call(h, dwmwaCloaked,
		uintptr(unsafe.Pointer(&cloaked)), unsafe.Sizeof(cloaked))
	return hr == 0 && cloaked != 0
}

// rankScore orders candidates so that the window a user means comes first:
// visible beats hidden, real app windows beat tool palettes, restored
// beats minimized, and bigger beats smaller up to a cap.
func rankScore(c windowCandidate) int {
	s := 0
	if c.visible {
		s += 10000
	}
	if !c.toolwindow {
		s += 3000
	}
	if !c.minimized {
		s += 1000
	}
	bonus := c.width * c.height / 10000
	if bonus > 5000 {
		bonus = 5000
	}
	return s + bonus
}

func sortCandidates(cands []windowCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ai := cands[i].width * cands[i].height
		aj := cands[j].width * cands[j].height
		if ai != aj {
			return ai > aj
		}
		return cands[i].handle < cands[j].handle
	})
}

// processNames maps pid -> executable name for process-based selectors and
// listings. Enumeration failures degrade to an empty map; a missing name
// just means that selector matches nothing.
func processNames() map[uint32]string {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}
	names := make(map[uint32]string, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		names[uint32(p.Pid)] = name
	}
	return names
}

// processNameMatches compares executable names case-insensitively, with
// the .exe suffix optional on either side.
func processNameMatches(name, want string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	want = strings.TrimSuffix(strings.ToLower(want), ".exe")
	return name != "" && name == want
}

// matchWindows filters and ranks the candidate set for one selector field.
func matchWindows(sel WindowSelector, field windowField) ([]windowCandidate, error) {
	if field == byHandle {
		if ok, _, _ := procIsWindow.Call(sel.Handle); ok == 0 {
			return nil, fmt.Errorf("%w: window handle 0x%X is not a window", ErrTargetNotFound, sel.Handle)
		}
		return []windowCandidate{inspectWindow(sel.Handle)}, nil
	}

	cands, err := enumTopLevelWindows()
	if err != nil {
		return nil, err
	}

	var names map[uint32]string
	if field == byProcess {
		names = processNames()
	}

	matched := cands[:0]
	for _, c := range cands {
		switch field {
		case byPID:
			if c.pid != sel.PID {
				continue
			}
		case byProcess:
			if !processNameMatches(names[c.pid], sel.Process) {
				continue
			}
		case byTitle:
			if c.title == "" ||
				!strings.Contains(strings.ToLower(c.title), strings.ToLower(sel.Title)) {
				continue
			}
		}
		matched = append(matched, c)
	}
	sortCandidates(matched)
	return matched, nil
}

// monitorIndexForWindow maps a window to the DXGI output index of the
// monitor that contains (most of) it.
func monitorIndexForWindow(h uintptr) (int, error) {
	hmon, _, _ := procMonitorFromWindow.Call(h, monitorDefaultToNearest)
	if hmon == 0 {
		return 0, fmt.Errorf("%w: window 0x%X is not on any monitor", ErrCaptureFailure, h)
	}

	device, context, err := createD3DDevice()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}
	defer comRelease(context)
	defer comRelease(device)

	dxgiDevice, err := comQueryInterface(device, &iidIDXGIDevice)
	if err != nil {
		return 0, fmt.Errorf("%w: query IDXGIDevice: %v", ErrCaptureFailure, err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, vtblDXGIDeviceGetAdapter,
		uintptr(unsafe.Pointer(&adapter))); err != nil {
		return 0, fmt.Errorf("%w: IDXGIDevice::GetAdapter: %v", ErrCaptureFailure, err)
	}
	defer comRelease(adapter)

	for i := 0; i < 32; i++ {
		var output uintptr
		hr := comCallHR(adapter, vtblDXGIAdapterEnumOutputs,
			uintptr(i), uintptr(unsafe.Pointer(&output)))
		if uint32(hr) == dxgiErrNotFound {
			break
		}
		if hrFailed(hr) || output == 0 {
			break
		}
		var desc dxgiOutputDesc
		_, descErr := comCall(output, vtblDXGIOutputGetDesc, uintptr(unsafe.Pointer(&desc)))
		comRelease(output)
		if descErr == nil && desc.Monitor == hmon {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no DXGI output for window 0x%X", ErrCaptureFailure, h)
}

// windowClientRect returns the window's client area in physical desktop
// coordinates, the space the duplication surface lives in.
func windowClientRect(h uintptr) (winRect, error) {
	ensureDPIAware()
	if ok, _, _ := procIsWindow.Call(h); ok == 0 {
		return winRect{}, fmt.Errorf("%w: window 0x%X no longer exists", ErrCaptureFailure, h)
	}
	var client winRect
	if ok, _, _ := procGetClientRect.Call(h, uintptr(unsafe.Pointer(&client))); ok == 0 {
		return winRect{}, fmt.Errorf("%w: GetClientRect failed for window 0x%X", ErrCaptureFailure, h)
	}
	var origin winPoint
	if ok, _, _ := procClientToScreen.Call(h, uintptr(unsafe.Pointer(&origin))); ok == 0 {
		return winRect{}, fmt.Errorf("%w: ClientToScreen failed for window 0x%X", ErrCaptureFailure, h)
	}
	return winRect{
		Left:   origin.X,
		Top:    origin.Y,
		Right:  origin.X + client.Right,
		Bottom: origin.Y + client.Bottom,
	}, nil
}

// Windows lists capturable top-level windows, best candidate first. A
// non-empty titleFilter keeps only titles containing it
// (case-insensitive).
func Windows(titleFilter string) ([]WindowInfo, error) {
	cands, err := enumTopLevelWindows()
	if err != nil {
		return nil, err
	}
	names := processNames()
	filter := strings.ToLower(titleFilter)

	kept := cands[:0]
	for _, c := range cands {
		if c.title == "" {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(c.title), filter) {
			continue
		}
		kept = append(kept, c)
	}
	sortCandidates(kept)

	infos := make([]WindowInfo, 0, len(kept))
	for _, c := range kept {
		infos = append(infos, WindowInfo{
			Handle:  c.handle,
			Title:   c.title,
			PID:     c.pid,
			Process: names[c.pid],
			Width:   c.width,
			Height:  c.height,
			Visible: c.visible,
		})
	}
	return infos, nil
}
