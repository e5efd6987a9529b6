package capture

import (
	"errors"
	"testing"
)

func TestOpenValidatesModeFirst(t *testing.T) {
	// A bad mode wins over a bad selector: it is rejected before any
	// target resolution happens.
	_, err := Open(MonitorSelector(-3), &Options{Mode: Mode(42)})
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("err = %v, want ErrInvalidMode", err)
	}
}

func TestOpenRejectsNegativeMonitor(t *testing.T) {
	_, err := Open(MonitorSelector(-1), nil)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestOpenRejectsEmptyWindowSelector(t *testing.T) {
	var rec diagRecorder
	_, err := Open(WindowSelector{}, &Options{Diagnostics: rec.emit})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
	if len(rec.diags) != 0 {
		t.Fatalf("empty selector emitted diagnostics: %v", rec.diags)
	}
}

func TestOpenEmitsAmbiguityAdvisory(t *testing.T) {
	// The advisory fires during selector validation, before resolution can
	// fail, so it is observable even when the open itself errors.
	var rec diagRecorder
	Open(WindowSelector{Handle: 1, Title: "x"}, &Options{Diagnostics: rec.emit})
	if !rec.has(DiagAmbiguousSelector) {
		t.Fatalf("ambiguity advisory not emitted, got %v", rec.diags)
	}
}

func TestNilDiagnosticsRouteToLogger(t *testing.T) {
	// No handler installed: advisories go to the process logger instead of
	// being dropped. This must not panic.
	var o Options
	o.emit(Diagnostic{Code: DiagSdrForced, Message: "test advisory"})
}
