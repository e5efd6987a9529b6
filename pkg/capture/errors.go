package capture

import "errors"

// Error kinds surfaced by the capture engine. Callers match them with
// errors.Is; every failing operation wraps exactly one of these.
var (
	// ErrTargetNotFound is returned when a selector resolves to no monitor
	// or window: bad monitor index, zero-value window selector, dead pid,
	// unmatched title, or an out-of-range match index.
	ErrTargetNotFound = errors.New("capture target not found")

	// ErrInvalidMode is returned for an unrecognized capture mode before
	// any OS interaction takes place.
	ErrInvalidMode = errors.New("invalid capture mode")

	// ErrSessionClosed is returned by any operation on a closed session.
	ErrSessionClosed = errors.New("capture session closed")

	// ErrUnsupportedFormat is returned by Save for an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrCaptureFailure is returned when the OS capture resource cannot be
	// acquired or stops producing frames (driver refusal, device removed,
	// target window destroyed).
	ErrCaptureFailure = errors.New("capture failure")
)
