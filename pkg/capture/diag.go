package capture

import (
	"github.com/breeze-rmm/hdrcap/internal/logging"
)

// Diagnostic codes emitted through the advisory channel.
const (
	// DiagAmbiguousSelector: more than one window selector field was set
	// and the lower-priority fields were ignored.
	DiagAmbiguousSelector = "ambiguous_selector"

	// DiagSdrForced: the caller requested sdr mode, which discards dynamic
	// range whenever the target is HDR-capable. Emitted on every sdr open.
	DiagSdrForced = "sdr_forced"

	// DiagHdrUnavailable: the caller requested hdr mode but the target is
	// not HDR-active, so the session fell back to 8-bit output.
	DiagHdrUnavailable = "hdr_unavailable"

	// DiagDuplicationFallback: the desktop duplication pipeline could not
	// be initialized and the session fell back to a slower capture path.
	DiagDuplicationFallback = "duplication_fallback"
)

// Diagnostic is a non-fatal advisory produced while opening a session or
// resolving a target. Diagnostics never affect the returned error.
type Diagnostic struct {
	Code    string
	Message string
}

func (d Diagnostic) String() string {
	return d.Code + ": " + d.Message
}

// DiagnosticFunc receives advisories. It is called synchronously from the
// goroutine performing the operation, so it must not block on the session
// it was registered with.
type DiagnosticFunc func(Diagnostic)

// defaultDiagnostics logs advisories at warn level so they are never
// silently dropped when the caller does not install a handler.
func defaultDiagnostics(d Diagnostic) {
	logging.L("capture").Warn(d.Message, "code", d.Code)
}
