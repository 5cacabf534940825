// Package rawinput captures per-device keyboard input through the Windows
// Raw Input API. Platform calls go through WindowAPI so the message
// handling can run against a fake outside Windows.
package rawinput

import "errors"

// Window messages handled by the interceptor.
const (
	WMDestroy   = 0x0002
	WMClose     = 0x0010
	WMNCDestroy = 0x0082
	WMInput     = 0x00FF
)

// Raw input query commands and record types.
const (
	RIDInput        = 0x10000003
	RIDIDeviceName  = 0x20000007
	RIMTypeMouse    = 0
	RIMTypeKeyboard = 1
	RIMTypeHID      = 2
)

// RAWKEYBOARD flag bits.
const (
	RIKeyBreak = 0x01
	RIKeyE0    = 0x02
	RIKeyE1    = 0x04
)

// RAWINPUTDEVICE flags.
const (
	RIDEVRemove    = 0x00000001
	RIDEVNoLegacy  = 0x00000030
	RIDEVInputSink = 0x00000100
)

// HID usage for the keyboard device class.
const (
	UsagePageGeneric = 0x01
	UsageKeyboard    = 0x06
)

var (
	// ErrNotAvailable is returned on platforms without raw input.
	ErrNotAvailable = errors.New("raw input not available on this platform")
	// ErrInvalidWindow is returned when a window handle does not exist.
	ErrInvalidWindow = errors.New("invalid window handle")
	// ErrAlreadyIntercepted is returned when a window already has an interceptor.
	ErrAlreadyIntercepted = errors.New("window already intercepted")
	// ErrShortRead is returned when a raw input record is smaller than announced.
	ErrShortRead = errors.New("raw input record truncated")
)

// RawInputDevice mirrors RAWINPUTDEVICE.
type RawInputDevice struct {
	UsagePage uint16
	Usage     uint16
	Flags     uint32
	Target    uintptr
}

// DeviceListEntry mirrors RAWINPUTDEVICELIST.
type DeviceListEntry struct {
	Handle uintptr
	Type   uint32
}

// WindowAPI is the set of user32 calls needed to subclass a window and
// read raw input.
type WindowAPI interface {
	IsWindow(hwnd uintptr) bool
	// SetWindowProc installs proc and returns the previous procedure.
	SetWindowProc(hwnd, proc uintptr) (uintptr, error)
	CallWindowProc(prev, hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr
	DefWindowProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr
	// Trampoline returns the address of the process-wide window procedure
	// that forwards to Dispatch.
	Trampoline() uintptr

	RegisterRawInputDevices(devices []RawInputDevice) error
	// GetRawInputData copies the record for lParam into buf. With a nil buf
	// it returns the required size.
	GetRawInputData(lParam uintptr, buf []byte) (uint32, error)
	// GetRawInputDeviceName copies the device path into buf. With a nil buf
	// it returns the required length in UTF-16 units.
	GetRawInputDeviceName(handle uintptr, buf []uint16) (uint32, error)
	RawInputDeviceList() ([]DeviceListEntry, error)
}

// Host is a window whose message loop runs on its own OS thread.
type Host interface {
	HWND() uintptr
	// Close asks the window to close. It is safe from any goroutine.
	Close() error
	// Done is closed after the message loop has exited.
	Done() <-chan struct{}
}

// Platform couples a WindowAPI with a way to open a host window.
type Platform interface {
	WindowAPI
	// StartHost creates a window and runs setup on the window thread before
	// the message loop starts. If setup fails the window is destroyed and
	// the error is returned.
	StartHost(title string, setup func(hwnd uintptr) error) (Host, error)
}
