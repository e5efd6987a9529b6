//go:build !windows

package capture

import "fmt"

var errPlatform = fmt.Errorf("%w: screen capture requires windows", ErrCaptureFailure)

func resolveTarget(sel Selector, emit DiagnosticFunc) (Target, error) {
	return Target{}, errPlatform
}

func openEngine(t Target, o Options) (engine, PixelFormat, int, int, error) {
	return nil, FormatBgra8, 0, 0, errPlatform
}

// Monitors lists attached displays. Only implemented on Windows.
func Monitors() ([]MonitorInfo, error) {
	return nil, errPlatform
}

// Windows lists capturable top-level windows. Only implemented on Windows.
func Windows(titleFilter string) ([]WindowInfo, error) {
	return nil, errPlatform
}
