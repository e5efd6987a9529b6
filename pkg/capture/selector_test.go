package capture

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestWindowSelectorPriority(t *testing.T) {
	tests := []struct {
		name        string
		sel         WindowSelector
		wantField   windowField
		wantIgnored []string
	}{
		{"empty", WindowSelector{}, byNone, nil},
		{"title only", WindowSelector{Title: "pad"}, byTitle, nil},
		{"process only", WindowSelector{Process: "notepad.exe"}, byProcess, nil},
		{"pid beats title", WindowSelector{Title: "pad", PID: 42}, byPID, []string{"title"}},
		{"process beats title", WindowSelector{Title: "pad", Process: "notepad.exe"}, byProcess, []string{"title"}},
		{"pid beats process", WindowSelector{PID: 42, Process: "notepad.exe"}, byPID, []string{"process"}},
		{
			"handle beats everything",
			WindowSelector{Title: "pad", PID: 42, Process: "notepad.exe", Handle: 0xBEEF},
			byHandle,
			[]string{"pid", "process", "title"},
		},
	}

	for _, tt := range tests {
		field, ignored := tt.sel.pick()
		if field != tt.wantField {
			t.Errorf("%s: field = %d, want %d", tt.name, field, tt.wantField)
		}
		if !reflect.DeepEqual(ignored, tt.wantIgnored) {
			t.Errorf("%s: ignored = %v, want %v", tt.name, ignored, tt.wantIgnored)
		}
	}
}

func TestWindowSelectorValidateEmpty(t *testing.T) {
	var rec diagRecorder
	_, err := WindowSelector{}.validate(rec.emit)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
	if len(rec.diags) != 0 {
		t.Fatalf("empty selector emitted diagnostics: %v", rec.diags)
	}
}

func TestWindowSelectorValidateNegativeIndex(t *testing.T) {
	var rec diagRecorder
	_, err := WindowSelector{Title: "pad", Index: -1}.validate(rec.emit)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestWindowSelectorAmbiguityAdvisory(t *testing.T) {
	var rec diagRecorder
	field, err := WindowSelector{Handle: 0x10, Title: "pad"}.validate(rec.emit)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if field != byHandle {
		t.Fatalf("field = %d, want byHandle", field)
	}
	if !rec.has(DiagAmbiguousSelector) {
		t.Fatalf("ambiguity advisory not emitted, got %v", rec.diags)
	}
	if msg := rec.diags[0].Message; !strings.Contains(msg, `"title"`) {
		t.Fatalf("advisory should name the ignored field, got %q", msg)
	}
}

func TestWindowSelectorSingleFieldIsQuiet(t *testing.T) {
	var rec diagRecorder
	if _, err := (WindowSelector{PID: 42}).validate(rec.emit); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(rec.diags) != 0 {
		t.Fatalf("unambiguous selector emitted diagnostics: %v", rec.diags)
	}
}

func TestSelectorString(t *testing.T) {
	tests := []struct {
		sel  Selector
		want string
	}{
		{MonitorSelector(1), "monitor:1"},
		{WindowSelector{Handle: 0xBEEF}, "window:handle=0xBEEF"},
		{WindowSelector{PID: 7}, "window:pid=7"},
		{WindowSelector{Process: "a.exe"}, `window:process="a.exe"`},
		{WindowSelector{Title: "calc"}, `window:title="calc"`},
		{WindowSelector{Handle: 0x10, Title: "calc"}, "window:handle=0x10"},
		{WindowSelector{}, "window:<empty>"},
	}

	for _, tt := range tests {
		if got := tt.sel.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
