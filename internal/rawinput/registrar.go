package rawinput

import (
	"fmt"
	"sync"
)

// Registrar owns the keyboard-class raw input registration. Windows keeps
// one registration per device class per process, so a Registrar should be
// shared by everything in the process that captures keyboards.
type Registrar struct {
	api   WindowAPI
	flags uint32

	mu     sync.Mutex
	active bool
	target uintptr
}

// NewRegistrar returns a registrar that sinks keyboard input and suppresses
// legacy keystroke messages while active.
func NewRegistrar(api WindowAPI) *Registrar {
	return &Registrar{
		api:   api,
		flags: RIDEVInputSink | RIDEVNoLegacy,
	}
}

// Register routes keyboard raw input to hwnd. Calling it again while active
// moves the registration to the new window.
func (r *Registrar) Register(hwnd uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev := RawInputDevice{
		UsagePage: UsagePageGeneric,
		Usage:     UsageKeyboard,
		Flags:     r.flags,
		Target:    hwnd,
	}
	if err := r.api.RegisterRawInputDevices([]RawInputDevice{dev}); err != nil {
		return fmt.Errorf("register raw keyboard input: %w", err)
	}
	r.active = true
	r.target = hwnd
	return nil
}

// Unregister removes the registration. Calls after the first are no-ops.
func (r *Registrar) Unregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	r.active = false
	r.target = 0
	dev := RawInputDevice{
		UsagePage: UsagePageGeneric,
		Usage:     UsageKeyboard,
		Flags:     RIDEVRemove,
	}
	if err := r.api.RegisterRawInputDevices([]RawInputDevice{dev}); err != nil {
		return fmt.Errorf("unregister raw keyboard input: %w", err)
	}
	return nil
}

// Target returns the registered window, if any.
func (r *Registrar) Target() (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target, r.active
}
