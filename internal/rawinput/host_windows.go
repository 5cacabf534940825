//go:build windows

package rawinput

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procRegisterClassExW = user32.NewProc("RegisterClassExW")
	procCreateWindowExW  = user32.NewProc("CreateWindowExW")
	procDestroyWindow    = user32.NewProc("DestroyWindow")
	procShowWindow       = user32.NewProc("ShowWindow")
	procUpdateWindow     = user32.NewProc("UpdateWindow")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procTranslateMessage = user32.NewProc("TranslateMessage")
	procDispatchMessageW = user32.NewProc("DispatchMessageW")
	procPostMessageW     = user32.NewProc("PostMessageW")
	procPostQuitMessage  = user32.NewProc("PostQuitMessage")
	procLoadCursorW      = user32.NewProc("LoadCursorW")
)

const (
	_WS_OVERLAPPED  = 0x00000000
	_WS_CAPTION     = 0x00C00000
	_WS_SYSMENU     = 0x00080000
	_WS_MINIMIZEBOX = 0x00020000
	_WS_VISIBLE     = 0x10000000
	_WS_CHILD       = 0x40000000

	_SS_CENTER      = 0x00000001
	_CW_USEDEFAULT  = 0x80000000
	_SW_SHOWDEFAULT = 10
	_COLOR_WINDOW   = 5
	_IDC_ARROW      = 32512
	_CS_HREDRAW     = 0x0002
	_CS_VREDRAW     = 0x0001
)

const hostText = "Press every key of the built-in keyboard once.\r\nClose this window to stop the test."

type _WndClassExW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

type _Point struct {
	X, Y int32
}

type _Msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      _Point
}

var (
	hostClassOnce sync.Once
	hostClassErr  error
	hostClassName = windows.StringToUTF16Ptr("keytestHost")
	hostInstance  windows.Handle
	hostProc      = windows.NewCallback(hostWndProc)
)

func hostWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case WMClose:
		_, _, _ = procDestroyWindow.Call(hwnd)
		return 0
	case WMDestroy:
		_, _, _ = procPostQuitMessage.Call(0)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func registerHostClass() error {
	hostClassOnce.Do(func() {
		if err := windows.GetModuleHandleEx(0, nil, &hostInstance); err != nil {
			hostClassErr = fmt.Errorf("getmodulehandle: %w", err)
			return
		}
		cursor, _, _ := procLoadCursorW.Call(0, _IDC_ARROW)
		wce := _WndClassExW{
			Style:         _CS_HREDRAW | _CS_VREDRAW,
			LpfnWndProc:   hostProc,
			HInstance:     hostInstance,
			HCursor:       windows.Handle(cursor),
			HbrBackground: _COLOR_WINDOW + 1,
			LpszClassName: hostClassName,
		}
		wce.CbSize = uint32(unsafe.Sizeof(wce))
		ret, _, errno := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wce)))
		if ret == 0 {
			hostClassErr = fmt.Errorf("registerclassex: %w", errno)
		}
	})
	return hostClassErr
}

// Functions prefixed with "ost" run on the window's OS thread.
type nativeHost struct {
	hwnd uintptr
	done chan struct{}
}

func startNativeHost(title string, setup func(hwnd uintptr) error) (*nativeHost, error) {
	h := &nativeHost{done: make(chan struct{})}
	initErr := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)

		if err := h.ostInitialize(title); err != nil {
			initErr <- err
			return
		}
		if err := setup(h.hwnd); err != nil {
			_, _, _ = procDestroyWindow.Call(h.hwnd)
			h.ostMsgLoop()
			initErr <- err
			return
		}
		initErr <- nil
		h.ostMsgLoop()
	}()

	if err := <-initErr; err != nil {
		return nil, err
	}
	return h, nil
}

func (h *nativeHost) ostInitialize(title string) error {
	if err := registerHostClass(); err != nil {
		return err
	}
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return fmt.Errorf("window title: %w", err)
	}
	hwnd, _, errno := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(hostClassName)),
		uintptr(unsafe.Pointer(titlePtr)),
		_WS_OVERLAPPED|_WS_CAPTION|_WS_SYSMENU|_WS_MINIMIZEBOX,
		_CW_USEDEFAULT, _CW_USEDEFAULT,
		460, 160,
		0, 0, uintptr(hostInstance), 0,
	)
	if hwnd == 0 {
		return fmt.Errorf("createwindow: %w", errno)
	}
	h.hwnd = hwnd

	staticClass := windows.StringToUTF16Ptr("STATIC")
	text := windows.StringToUTF16Ptr(hostText)
	_, _, _ = procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(staticClass)),
		uintptr(unsafe.Pointer(text)),
		_WS_CHILD|_WS_VISIBLE|_SS_CENTER,
		10, 30, 420, 60,
		hwnd, 0, uintptr(hostInstance), 0,
	)

	_, _, _ = procShowWindow.Call(hwnd, _SW_SHOWDEFAULT)
	_, _, _ = procUpdateWindow.Call(hwnd)
	return nil
}

func (h *nativeHost) ostMsgLoop() {
	var m _Msg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 is an error.
		if ret == 0 || int32(ret) == -1 {
			return
		}
		_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (h *nativeHost) HWND() uintptr {
	return h.hwnd
}

func (h *nativeHost) Close() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if !(nativeAPI{}).IsWindow(h.hwnd) {
		return nil
	}
	ret, _, errno := procPostMessageW.Call(h.hwnd, WMClose, 0, 0)
	if ret == 0 {
		return fmt.Errorf("postmessage: %w", errno)
	}
	return nil
}

func (h *nativeHost) Done() <-chan struct{} {
	return h.done
}

type nativePlatform struct {
	nativeAPI
}

func (nativePlatform) StartHost(title string, setup func(hwnd uintptr) error) (Host, error) {
	h, err := startNativeHost(title, setup)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// NewPlatform returns the user32-backed platform.
func NewPlatform() (Platform, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	return nativePlatform{}, nil
}
