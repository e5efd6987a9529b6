//go:build !windows

package imaging

import "errors"

// JPEG XR encoding rides on the Windows Imaging Component; there is no
// portable encoder to fall back to.
func saveJXR(path string, src Source) error {
	return errors.New("jxr encoding requires windows")
}
