//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"
)

// comGUID mirrors the Windows GUID layout.
type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// IUnknown vtable slots shared by every COM interface.
const (
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2
)

// comVtblFn resolves the function pointer at slot idx of obj's vtable.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes the method at vtable slot idx on obj and fails on any
// negative HRESULT.
func comCall(obj uintptr, idx int, args ...uintptr) (uintptr, error) {
	if obj == 0 {
		return 0, fmt.Errorf("nil COM object")
	}
	callArgs := append([]uintptr{obj}, args...)
	ret, _, _ := syscall.SyscallN(comVtblFn(obj, idx), callArgs...)
	if hrFailed(ret) {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", idx, uint32(ret))
	}
	return ret, nil
}

// comCallHR invokes a COM method and hands back the raw HRESULT, for call
// sites that branch on specific values instead of treating all failures
// alike.
func comCallHR(obj uintptr, idx int, args ...uintptr) uintptr {
	callArgs := append([]uintptr{obj}, args...)
	ret, _, _ := syscall.SyscallN(comVtblFn(obj, idx), callArgs...)
	return ret
}

// comQueryInterface asks obj for the interface identified by iid.
func comQueryInterface(obj uintptr, iid *comGUID) (uintptr, error) {
	var out uintptr
	if _, err := comCall(obj, vtblQueryInterface,
		uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out))); err != nil {
		return 0, err
	}
	if out == 0 {
		return 0, fmt.Errorf("QueryInterface returned nil interface")
	}
	return out, nil
}

// comRelease drops one reference. Safe on zero handles.
func comRelease(obj uintptr) {
	if obj != 0 {
		comCallHR(obj, vtblRelease)
	}
}

func hrFailed(hr uintptr) bool {
	return int32(hr) < 0
}
