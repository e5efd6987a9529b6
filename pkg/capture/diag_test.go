package capture

// diagRecorder collects advisories for assertions.
type diagRecorder struct {
	diags []Diagnostic
}

func (r *diagRecorder) emit(d Diagnostic) {
	r.diags = append(r.diags, d)
}

func (r *diagRecorder) has(code string) bool {
	for _, d := range r.diags {
		if d.Code == code {
			return true
		}
	}
	return false
}
