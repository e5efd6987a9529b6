package capture

import "fmt"

// TargetKind discriminates resolved capture targets.
type TargetKind int

const (
	TargetMonitor TargetKind = iota
	TargetWindow
)

// Target is a fully resolved capture target. It is immutable for the life
// of a session: re-resolution never happens after open, even if the
// underlying window title or monitor topology changes.
type Target struct {
	Kind TargetKind

	// MonitorIndex is the output index for monitor targets, and for window
	// targets the index of the monitor that contained the window at
	// resolution time.
	MonitorIndex int

	// Window is the native handle for window targets, zero otherwise.
	Window uintptr

	// PID is the owning process of a window target when known.
	PID uint32

	// Title is the window title snapshot taken at resolution time.
	Title string
}

func (t Target) String() string {
	if t.Kind == TargetWindow {
		if t.Title != "" {
			return fmt.Sprintf("window 0x%X (pid %d, %q)", t.Window, t.PID, t.Title)
		}
		return fmt.Sprintf("window 0x%X (pid %d)", t.Window, t.PID)
	}
	return fmt.Sprintf("monitor %d", t.MonitorIndex)
}
