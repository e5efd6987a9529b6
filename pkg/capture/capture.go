// Package capture grabs monitor and window pixels on Windows, in 8-bit
// BGRA or, on HDR displays, 16-bit float scRGB. It wraps DXGI desktop
// duplication with a GDI fallback and exposes a small session API:
//
//	sess, err := capture.OpenMonitor(0, nil)
//	if err != nil { ... }
//	defer sess.Close()
//	frame, err := sess.Capture()
//	if err != nil { ... }
//	if err := frame.Save("shot.png"); err != nil { ... }
//
// Sessions are safe for concurrent use from multiple goroutines. Frames
// are immutable and stay valid after the session closes.
package capture

import "fmt"

// Options tunes how a session is opened. The zero value (and nil) selects
// ModeAuto with diagnostics routed to the process logger.
type Options struct {
	// Mode selects the dynamic range. See ModeAuto, ModeSdr, ModeHdr.
	Mode Mode

	// Diagnostics receives non-fatal advisories (selector ambiguity, mode
	// downgrades, capture path fallbacks). When nil they are logged at
	// warn level instead; they are never dropped.
	Diagnostics DiagnosticFunc

	// SDRWhiteNits overrides the SDR white level used when tone-mapping
	// float frames for 8-bit outputs. 0 queries the display, which is
	// almost always what you want.
	SDRWhiteNits float64
}

func normalizeOptions(opts *Options) Options {
	if opts == nil {
		return Options{}
	}
	return *opts
}

func (o Options) emit(d Diagnostic) {
	if o.Diagnostics != nil {
		o.Diagnostics(d)
		return
	}
	defaultDiagnostics(d)
}

// Open resolves sel and starts a capture session for it. Mode validation
// happens before any OS interaction, so an invalid mode fails with
// ErrInvalidMode even when the selector is also bad.
func Open(sel Selector, opts *Options) (*Session, error) {
	o := normalizeOptions(opts)
	if !o.Mode.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(o.Mode))
	}
	switch s := sel.(type) {
	case MonitorSelector:
		if s < 0 {
			return nil, fmt.Errorf("%w: negative monitor index %d", ErrTargetNotFound, int(s))
		}
	case WindowSelector:
		if _, err := s.validate(o.emit); err != nil {
			return nil, err
		}
	case nil:
		sel = MonitorSelector(0)
	default:
		return nil, fmt.Errorf("%w: unknown selector type %T", ErrTargetNotFound, sel)
	}
	target, err := resolveTarget(sel, o.emit)
	if err != nil {
		return nil, err
	}
	eng, format, width, height, err := openEngine(target, o)
	if err != nil {
		return nil, err
	}
	return newSession(target, eng, format, width, height), nil
}

// OpenMonitor starts a session for the monitor at the given enumeration
// index. Index 0 is the primary display.
func OpenMonitor(index int, opts *Options) (*Session, error) {
	return Open(MonitorSelector(index), opts)
}

// OpenWindow starts a session for the window matched by sel.
func OpenWindow(sel WindowSelector, opts *Options) (*Session, error) {
	return Open(sel, opts)
}

// Screenshot is the one-shot convenience: open, capture one frame, close.
// A nil selector captures the primary monitor. The returned frame outlives
// the short-lived session behind it.
func Screenshot(sel Selector, opts *Options) (*Frame, error) {
	sess, err := Open(sel, opts)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Capture()
}
