package capture

import (
	"fmt"
	"strings"
)

// Selector identifies what a session should capture. The two
// implementations are MonitorSelector and WindowSelector.
type Selector interface {
	isSelector()
	String() string
}

// MonitorSelector captures a whole monitor by enumeration index. Index 0
// is the primary display.
type MonitorSelector int

func (MonitorSelector) isSelector() {}

func (m MonitorSelector) String() string {
	return fmt.Sprintf("monitor:%d", int(m))
}

// WindowSelector captures a single window. Exactly one identifying field
// is honored; when several are set the highest-priority one wins
// (Handle, then PID, then Process, then Title) and an advisory is emitted
// for the ignored ones. The zero value matches nothing.
type WindowSelector struct {
	// Title substring, matched case-insensitively against window titles.
	Title string

	// PID restricts matching to windows owned by this process id.
	PID uint32

	// Handle is a native window handle (HWND). Zero means unset.
	Handle uintptr

	// Process is an executable name such as "notepad.exe", matched
	// case-insensitively and resolved to owning processes first.
	Process string

	// Index picks the Nth candidate when several windows match, counted
	// from the best-ranked one. 0 is the best match.
	Index int
}

func (WindowSelector) isSelector() {}

func (s WindowSelector) String() string {
	switch field, _ := s.pick(); field {
	case byHandle:
		return fmt.Sprintf("window:handle=0x%X", s.Handle)
	case byPID:
		return fmt.Sprintf("window:pid=%d", s.PID)
	case byProcess:
		return fmt.Sprintf("window:process=%q", s.Process)
	case byTitle:
		return fmt.Sprintf("window:title=%q", s.Title)
	}
	return "window:<empty>"
}

// windowField is the identifying field a resolver should match on.
type windowField int

const (
	byNone windowField = iota
	byHandle
	byPID
	byProcess
	byTitle
)

// pick applies the field priority and reports which lower-priority fields
// were set but will be ignored.
func (s WindowSelector) pick() (windowField, []string) {
	var set []string
	if s.Handle != 0 {
		set = append(set, "handle")
	}
	if s.PID != 0 {
		set = append(set, "pid")
	}
	if s.Process != "" {
		set = append(set, "process")
	}
	if s.Title != "" {
		set = append(set, "title")
	}
	if len(set) == 0 {
		return byNone, nil
	}
	var field windowField
	switch set[0] {
	case "handle":
		field = byHandle
	case "pid":
		field = byPID
	case "process":
		field = byProcess
	case "title":
		field = byTitle
	}
	return field, set[1:]
}

// validate checks the selector shape without touching the OS and emits the
// ambiguity advisory when applicable.
func (s WindowSelector) validate(emit DiagnosticFunc) (windowField, error) {
	field, ignored := s.pick()
	if field == byNone {
		return byNone, fmt.Errorf("%w: window selector has no handle, pid, process or title", ErrTargetNotFound)
	}
	if s.Index < 0 {
		return byNone, fmt.Errorf("%w: negative window match index %d", ErrTargetNotFound, s.Index)
	}
	if len(ignored) > 0 {
		used := [...]string{byHandle: "handle", byPID: "pid", byProcess: "process", byTitle: "title"}[field]
		emit(Diagnostic{
			Code:    DiagAmbiguousSelector,
			Message: fmt.Sprintf("window selector: %q provided; ignoring %s", used, quoteList(ignored)),
		})
	}
	return field, nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return strings.Join(quoted, ", ")
}
