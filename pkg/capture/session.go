package capture

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/hdrcap/internal/logging"
)

// engine is the platform capture backend behind a session. Methods are
// called with the session mutex held, so implementations do not need their
// own call serialization. release must be safe to call more than once and
// from any goroutine, including the runtime cleanup goroutine.
type engine interface {
	capture() (*Frame, error)
	grab() (*Frame, error)
	hdrActive() (bool, error)
	release()
}

// Session is an open capture stream bound to one resolved target. All
// methods are safe for concurrent use; operations are serialized
// internally, so slow OS calls on one goroutine delay, but never corrupt,
// calls from others.
//
// A Session must be released with Close. As a backstop, an unreachable
// session has its OS resources reclaimed by the runtime, but relying on
// that makes release timing unpredictable.
type Session struct {
	mu      sync.Mutex
	closed  atomic.Bool
	eng     engine
	cleanup runtime.Cleanup

	target Target
	format PixelFormat
	width  int
	height int

	log *slog.Logger
}

func newSession(target Target, eng engine, format PixelFormat, width, height int) *Session {
	s := &Session{
		eng:    eng,
		target: target,
		format: format,
		width:  width,
		height: height,
		log:    logging.L("capture"),
	}
	// The engine is a separate allocation, so it stays a valid cleanup
	// argument after the session itself becomes unreachable.
	s.cleanup = runtime.AddCleanup(s, func(e engine) { e.release() }, eng)
	s.log.Info("session opened",
		logging.KeyTarget, target.String(),
		logging.KeyFormat, format.String(),
		"width", width,
		"height", height)
	return s
}

// Target returns the resolved target this session captures. It never
// changes after open.
func (s *Session) Target() Target { return s.target }

// Format returns the negotiated pixel format. Every frame from this
// session uses it.
func (s *Session) Format() PixelFormat { return s.format }

// Width returns the capture width in pixels.
func (s *Session) Width() int { return s.width }

// Height returns the capture height in pixels.
func (s *Session) Height() int { return s.height }

// Capture blocks until a frame whose content is no older than the call
// itself is available. This is the cold-path call: it tolerates an idle
// compositor by waiting out the first-frame delay.
func (s *Session) Capture() (*Frame, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("capture: %w", ErrSessionClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, fmt.Errorf("capture: %w", ErrSessionClosed)
	}
	return s.eng.capture()
}

// Grab returns the most recent frame with minimum latency. On an unchanged
// screen it may re-deliver the previous content with a fresh timestamp, so
// it is the right call for polling loops and the wrong one for "what is on
// screen right now, however long it takes" one-shots.
func (s *Session) Grab() (*Frame, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("grab: %w", ErrSessionClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, fmt.Errorf("grab: %w", ErrSessionClosed)
	}
	return s.eng.grab()
}

// IsHDR reports whether the target is HDR-active right now. The answer can
// change over the session's lifetime; the negotiated Format does not.
func (s *Session) IsHDR() (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("is_hdr: %w", ErrSessionClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false, fmt.Errorf("is_hdr: %w", ErrSessionClosed)
	}
	return s.eng.hdrActive()
}

// Close releases the OS capture resources. It is idempotent and safe to
// call from any goroutine, concurrently with in-flight operations: the
// closed flag is raised first so new calls fail fast with
// ErrSessionClosed, then Close waits for the operation lock so teardown
// happens strictly after any call already in progress.
//
// Frames produced before Close stay valid; they do not borrow from the
// session.
func (s *Session) Close() error {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup.Stop()
	s.eng.release()
	s.log.Debug("session closed", logging.KeyTarget, s.target.String())
	return nil
}
