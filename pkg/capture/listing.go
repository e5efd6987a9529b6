package capture

// MonitorInfo describes one attached display, as returned by Monitors.
type MonitorInfo struct {
	Index     int     `json:"index" yaml:"index"`
	Device    string  `json:"device" yaml:"device"`
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	Left      int     `json:"left" yaml:"left"`
	Top       int     `json:"top" yaml:"top"`
	Primary   bool    `json:"primary" yaml:"primary"`
	HDRActive bool    `json:"hdr_active" yaml:"hdr_active"`
	WhiteNits float64 `json:"sdr_white_nits" yaml:"sdr_white_nits"`
}

// WindowInfo describes one capturable top-level window, as returned by
// Windows. Results are ordered best candidate first, using the same
// ranking window resolution uses.
type WindowInfo struct {
	Handle  uintptr `json:"handle" yaml:"handle"`
	Title   string  `json:"title" yaml:"title"`
	PID     uint32  `json:"pid" yaml:"pid"`
	Process string  `json:"process" yaml:"process"`
	Width   int     `json:"width" yaml:"width"`
	Height  int     `json:"height" yaml:"height"`
	Visible bool    `json:"visible" yaml:"visible"`
}
