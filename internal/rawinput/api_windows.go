//go:build windows

package rawinput

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procIsWindow                = user32.NewProc("IsWindow")
	procSetWindowLongPtrW       = user32.NewProc("SetWindowLongPtrW")
	procSetWindowLongW          = user32.NewProc("SetWindowLongW")
	procCallWindowProcW         = user32.NewProc("CallWindowProcW")
	procDefWindowProcW          = user32.NewProc("DefWindowProcW")
	procRegisterRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	procGetRawInputData         = user32.NewProc("GetRawInputData")
	procGetRawInputDeviceInfoW  = user32.NewProc("GetRawInputDeviceInfoW")
	procGetRawInputDeviceList   = user32.NewProc("GetRawInputDeviceList")

	procSetLastError = kernel32.NewProc("SetLastError")
)

const _GWLP_WNDPROC = ^uintptr(3) // -4

// dispatchCallback is created once; windows.NewCallback slots are never freed.
var dispatchCallback = windows.NewCallback(func(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	if ret, ok := Dispatch(hwnd, msg, wParam, lParam); ok {
		return ret
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
})

type nativeAPI struct{}

func (nativeAPI) IsWindow(hwnd uintptr) bool {
	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

func (nativeAPI) SetWindowProc(hwnd, proc uintptr) (uintptr, error) {
	p := procSetWindowLongPtrW
	if p.Find() != nil {
		// 32-bit user32 only exports SetWindowLongW.
		p = procSetWindowLongW
	}
	_, _, _ = procSetLastError.Call(0)
	prev, _, errno := p.Call(hwnd, _GWLP_WNDPROC, proc)
	if prev == 0 && errno != windows.ERROR_SUCCESS {
		return 0, fmt.Errorf("SetWindowLongPtrW: %w", errno)
	}
	return prev, nil
}

func (nativeAPI) CallWindowProc(prev, hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	ret, _, _ := procCallWindowProcW.Call(prev, hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (nativeAPI) DefWindowProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (nativeAPI) Trampoline() uintptr {
	return dispatchCallback
}

func (nativeAPI) RegisterRawInputDevices(devices []RawInputDevice) error {
	if len(devices) == 0 {
		return nil
	}
	ret, _, errno := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&devices[0])),
		uintptr(len(devices)),
		unsafe.Sizeof(devices[0]),
	)
	if ret == 0 {
		return fmt.Errorf("RegisterRawInputDevices: %w", errno)
	}
	return nil
}

func (nativeAPI) GetRawInputData(lParam uintptr, buf []byte) (uint32, error) {
	size := uint32(len(buf))
	var data uintptr
	if len(buf) > 0 {
		data = uintptr(unsafe.Pointer(&buf[0]))
	}
	ret, _, errno := procGetRawInputData.Call(
		lParam,
		RIDInput,
		data,
		uintptr(unsafe.Pointer(&size)),
		uintptr(HeaderSize),
	)
	if uint32(ret) == ^uint32(0) {
		return 0, fmt.Errorf("GetRawInputData: %w", errno)
	}
	if data == 0 {
		return size, nil
	}
	return uint32(ret), nil
}

func (nativeAPI) GetRawInputDeviceName(handle uintptr, buf []uint16) (uint32, error) {
	size := uint32(len(buf))
	var data uintptr
	if len(buf) > 0 {
		data = uintptr(unsafe.Pointer(&buf[0]))
	}
	ret, _, errno := procGetRawInputDeviceInfoW.Call(
		handle,
		RIDIDeviceName,
		data,
		uintptr(unsafe.Pointer(&size)),
	)
	if uint32(ret) == ^uint32(0) {
		return 0, fmt.Errorf("GetRawInputDeviceInfoW: %w", errno)
	}
	if data == 0 {
		return size, nil
	}
	return uint32(ret), nil
}

type rawInputDeviceList struct {
	Device uintptr
	Type   uint32
}

func (nativeAPI) RawInputDeviceList() ([]DeviceListEntry, error) {
	var count uint32
	entrySize := unsafe.Sizeof(rawInputDeviceList{})
	ret, _, errno := procGetRawInputDeviceList.Call(0, uintptr(unsafe.Pointer(&count)), entrySize)
	if uint32(ret) == ^uint32(0) {
		return nil, fmt.Errorf("GetRawInputDeviceList: %w", errno)
	}
	if count == 0 {
		return nil, nil
	}
	list := make([]rawInputDeviceList, count)
	ret, _, errno = procGetRawInputDeviceList.Call(
		uintptr(unsafe.Pointer(&list[0])),
		uintptr(unsafe.Pointer(&count)),
		entrySize,
	)
	if uint32(ret) == ^uint32(0) {
		return nil, fmt.Errorf("GetRawInputDeviceList: %w", errno)
	}
	out := make([]DeviceListEntry, 0, int(ret))
	for _, d := range list[:int(ret)] {
		out = append(out, DeviceListEntry{Handle: d.Device, Type: d.Type})
	}
	return out, nil
}
