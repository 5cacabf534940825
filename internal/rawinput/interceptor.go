package rawinput

import (
	"fmt"
	"sync"
)

// Handler receives the messages an Interceptor consumes. Both methods run
// on the window thread and must not block.
type Handler interface {
	HandleInput(hwnd, lParam uintptr)
	HandleDestroy(hwnd uintptr)
}

var (
	registryMu sync.Mutex
	registry   = map[uintptr]*Interceptor{}
)

// Interceptor replaces the window procedure of one window and chains to
// the previous procedure for every message it does not consume.
type Interceptor struct {
	api     WindowAPI
	handler Handler
	hwnd    uintptr

	mu        sync.Mutex
	next      uintptr
	installed bool
}

// Install subclasses hwnd. It fails for windows that do not exist or that
// already have an interceptor.
func Install(api WindowAPI, hwnd uintptr, handler Handler) (*Interceptor, error) {
	if hwnd == 0 || !api.IsWindow(hwnd) {
		return nil, ErrInvalidWindow
	}
	ic := &Interceptor{api: api, handler: handler, hwnd: hwnd}

	registryMu.Lock()
	if _, ok := registry[hwnd]; ok {
		registryMu.Unlock()
		return nil, ErrAlreadyIntercepted
	}
	registry[hwnd] = ic
	registryMu.Unlock()

	prev, err := api.SetWindowProc(hwnd, api.Trampoline())
	if err != nil {
		unregisterInterceptor(hwnd, ic)
		return nil, fmt.Errorf("replace window procedure: %w", err)
	}
	ic.mu.Lock()
	ic.next = prev
	ic.installed = true
	ic.mu.Unlock()
	return ic, nil
}

// HWND returns the intercepted window.
func (ic *Interceptor) HWND() uintptr {
	return ic.hwnd
}

// Installed reports whether the interceptor still owns the window procedure.
func (ic *Interceptor) Installed() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.installed
}

// Restore puts the previous window procedure back. It is safe to call more
// than once and after the window is gone.
func (ic *Interceptor) Restore() error {
	_, err := ic.detach()
	return err
}

func (ic *Interceptor) detach() (uintptr, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	next := ic.next
	if !ic.installed {
		return next, nil
	}
	ic.installed = false
	unregisterInterceptor(ic.hwnd, ic)
	if !ic.api.IsWindow(ic.hwnd) {
		return next, nil
	}
	if _, err := ic.api.SetWindowProc(ic.hwnd, next); err != nil {
		return next, fmt.Errorf("restore window procedure: %w", err)
	}
	return next, nil
}

func (ic *Interceptor) wndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case WMInput:
		ic.handler.HandleInput(hwnd, lParam)
		return 0
	case WMNCDestroy:
		// Last message the window receives; give the procedure back first.
		next, _ := ic.detach()
		ic.handler.HandleDestroy(hwnd)
		return ic.forward(next, hwnd, msg, wParam, lParam)
	}
	if !ic.api.IsWindow(hwnd) {
		return 0
	}
	ic.mu.Lock()
	next := ic.next
	ic.mu.Unlock()
	return ic.forward(next, hwnd, msg, wParam, lParam)
}

func (ic *Interceptor) forward(next, hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	if next != 0 {
		return ic.api.CallWindowProc(next, hwnd, msg, wParam, lParam)
	}
	return ic.api.DefWindowProc(hwnd, msg, wParam, lParam)
}

// Dispatch routes a message to the interceptor installed on hwnd. It
// returns false when hwnd has no interceptor; the caller then falls back to
// the default window procedure.
func Dispatch(hwnd uintptr, msg uint32, wParam, lParam uintptr) (uintptr, bool) {
	registryMu.Lock()
	ic, ok := registry[hwnd]
	registryMu.Unlock()
	if !ok {
		return 0, false
	}
	return ic.wndProc(hwnd, msg, wParam, lParam), true
}

func unregisterInterceptor(hwnd uintptr, ic *Interceptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry[hwnd] == ic {
		delete(registry, hwnd)
	}
}
