// Package rawinputtest provides an in-memory rawinput.Platform for tests.
package rawinputtest

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
)

// TrampolineAddr is the fake address of the dispatch trampoline.
const TrampolineAddr uintptr = 0x7FFE0000

// Message is a message delivered to a window's original procedure.
type Message struct {
	HWND   uintptr
	Msg    uint32
	WParam uintptr
	LParam uintptr
}

type window struct {
	alive    bool
	proc     uintptr
	original uintptr
	done     chan struct{}
}

// Platform is a fake rawinput.Platform. The zero value is not usable; call New.
type Platform struct {
	mu sync.Mutex

	windows  map[uintptr]*window
	nextHWND uintptr

	// Received holds messages that reached an original window procedure.
	received []Message
	// ForwardResult is returned by original window procedures.
	ForwardResult uintptr

	registration *rawinput.RawInputDevice
	registerLog  []rawinput.RawInputDevice
	// FailRegister makes RegisterRawInputDevices fail for non-remove calls.
	FailRegister error
	// FailSetProc makes SetWindowProc fail.
	FailSetProc error

	records   map[uintptr][]byte
	nextParam uintptr
	// ShortCopy makes the second GetRawInputData call copy one byte less.
	ShortCopy bool

	names   map[uintptr]string
	devices []rawinput.DeviceListEntry

	depth  int
	posted []uintptr
}

var _ rawinput.Platform = (*Platform)(nil)

// New returns an empty fake platform.
func New() *Platform {
	return &Platform{
		windows:   map[uintptr]*window{},
		nextHWND:  0x100,
		records:   map[uintptr][]byte{},
		nextParam: 0x5000,
		names:     map[uintptr]string{},
	}
}

// AddWindow creates a live window with its own original procedure.
func (p *Platform) AddWindow() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addWindowLocked()
}

func (p *Platform) addWindowLocked() uintptr {
	p.nextHWND += 0x10
	hwnd := p.nextHWND
	orig := 0x10000 + hwnd
	p.windows[hwnd] = &window{alive: true, proc: orig, original: orig, done: make(chan struct{})}
	return hwnd
}

// AddKeyboard registers a keyboard device with the given path. An empty
// path simulates a device whose name cannot be queried.
func (p *Platform) AddKeyboard(handle uintptr, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path != "" {
		p.names[handle] = path
	}
	p.devices = append(p.devices, rawinput.DeviceListEntry{Handle: handle, Type: rawinput.RIMTypeKeyboard})
}

// Proc returns the current window procedure of hwnd.
func (p *Platform) Proc(hwnd uintptr) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.windows[hwnd]; ok {
		return w.proc
	}
	return 0
}

// OriginalProc returns the procedure hwnd was created with.
func (p *Platform) OriginalProc(hwnd uintptr) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.windows[hwnd]; ok {
		return w.original
	}
	return 0
}

// Received returns the messages that reached original procedures.
func (p *Platform) Received() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.received...)
}

// Registration returns the active keyboard registration.
func (p *Platform) Registration() (rawinput.RawInputDevice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration == nil {
		return rawinput.RawInputDevice{}, false
	}
	return *p.registration, true
}

// RegisterCalls returns every RegisterRawInputDevices entry seen.
func (p *Platform) RegisterCalls() []rawinput.RawInputDevice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]rawinput.RawInputDevice(nil), p.registerLog...)
}

// IsWindow implements rawinput.WindowAPI.
func (p *Platform) IsWindow(hwnd uintptr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[hwnd]
	return ok && w.alive
}

// SetWindowProc implements rawinput.WindowAPI.
func (p *Platform) SetWindowProc(hwnd, proc uintptr) (uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSetProc != nil {
		return 0, p.FailSetProc
	}
	w, ok := p.windows[hwnd]
	if !ok || !w.alive {
		return 0, rawinput.ErrInvalidWindow
	}
	prev := w.proc
	w.proc = proc
	return prev, nil
}

// CallWindowProc implements rawinput.WindowAPI.
func (p *Platform) CallWindowProc(prev, hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.windows[hwnd]; ok && prev == w.original {
		p.received = append(p.received, Message{HWND: hwnd, Msg: msg, WParam: wParam, LParam: lParam})
		return p.ForwardResult
	}
	return 0
}

// DefWindowProc implements rawinput.WindowAPI.
func (p *Platform) DefWindowProc(uintptr, uint32, uintptr, uintptr) uintptr {
	return 0
}

// Trampoline implements rawinput.WindowAPI.
func (p *Platform) Trampoline() uintptr {
	return TrampolineAddr
}

// RegisterRawInputDevices implements rawinput.WindowAPI. A removal clears
// the registration, anything else replaces it.
func (p *Platform) RegisterRawInputDevices(devices []rawinput.RawInputDevice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dev := range devices {
		if dev.Flags&rawinput.RIDEVRemove != 0 {
			if dev.Target != 0 {
				return errors.New("remove requires a zero target")
			}
			p.registerLog = append(p.registerLog, dev)
			p.registration = nil
			continue
		}
		if p.FailRegister != nil {
			return p.FailRegister
		}
		p.registerLog = append(p.registerLog, dev)
		d := dev
		p.registration = &d
	}
	return nil
}

// GetRawInputData implements rawinput.WindowAPI.
func (p *Platform) GetRawInputData(lParam uintptr, buf []byte) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[lParam]
	if !ok {
		return 0, fmt.Errorf("unknown raw input handle 0x%x", lParam)
	}
	if buf == nil {
		return uint32(len(rec)), nil
	}
	if len(buf) < len(rec) {
		return 0, errors.New("insufficient buffer")
	}
	n := copy(buf, rec)
	if p.ShortCopy {
		n--
	}
	return uint32(n), nil
}

// GetRawInputDeviceName implements rawinput.WindowAPI.
func (p *Platform) GetRawInputDeviceName(handle uintptr, buf []uint16) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.names[handle]
	if !ok {
		return 0, errors.New("device not found")
	}
	units := append(utf16.Encode([]rune(name)), 0)
	if buf == nil {
		return uint32(len(units)), nil
	}
	if len(buf) < len(units) {
		return 0, errors.New("insufficient buffer")
	}
	return uint32(copy(buf, units)), nil
}

// RawInputDeviceList implements rawinput.WindowAPI.
func (p *Platform) RawInputDeviceList() ([]rawinput.DeviceListEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]rawinput.DeviceListEntry(nil), p.devices...), nil
}

// StartHost implements rawinput.Platform. Setup runs on the calling
// goroutine, which stands in for the window thread.
func (p *Platform) StartHost(_ string, setup func(hwnd uintptr) error) (rawinput.Host, error) {
	p.mu.Lock()
	hwnd := p.addWindowLocked()
	p.mu.Unlock()
	if err := setup(hwnd); err != nil {
		p.Destroy(hwnd)
		return nil, err
	}
	return &Host{p: p, hwnd: hwnd}, nil
}

// Send delivers a message to hwnd through its current procedure, then runs
// any window closes posted while it was handled.
func (p *Platform) Send(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	p.mu.Lock()
	w, ok := p.windows[hwnd]
	if !ok || !w.alive {
		p.mu.Unlock()
		return 0
	}
	proc := w.proc
	p.depth++
	p.mu.Unlock()

	var ret uintptr
	if proc == TrampolineAddr {
		if r, handled := rawinput.Dispatch(hwnd, msg, wParam, lParam); handled {
			ret = r
		}
	} else {
		ret = p.CallWindowProc(proc, hwnd, msg, wParam, lParam)
	}

	p.mu.Lock()
	p.depth--
	var posted []uintptr
	if p.depth == 0 {
		posted = p.posted
		p.posted = nil
	}
	p.mu.Unlock()
	for _, h := range posted {
		p.Destroy(h)
	}
	return ret
}

// SendKey stores ev as a raw input record and delivers WM_INPUT for it.
func (p *Platform) SendKey(hwnd uintptr, ev model.RawKeyEvent) {
	p.mu.Lock()
	p.nextParam++
	lParam := p.nextParam
	p.records[lParam] = rawinput.EncodeKeyboard(ev)
	p.mu.Unlock()
	p.Send(hwnd, rawinput.WMInput, 0, lParam)
}

// StoreRecord stores a raw record and returns its lParam.
func (p *Platform) StoreRecord(rec []byte) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextParam++
	p.records[p.nextParam] = rec
	return p.nextParam
}

// Destroy sends WM_DESTROY and WM_NCDESTROY to hwnd and marks it dead.
func (p *Platform) Destroy(hwnd uintptr) {
	p.mu.Lock()
	w, ok := p.windows[hwnd]
	if !ok || !w.alive {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.Send(hwnd, rawinput.WMDestroy, 0, 0)
	p.Send(hwnd, rawinput.WMNCDestroy, 0, 0)

	p.mu.Lock()
	if w.alive {
		w.alive = false
		close(w.done)
	}
	p.mu.Unlock()
}

func (p *Platform) postClose(hwnd uintptr) {
	p.mu.Lock()
	if p.depth > 0 {
		p.posted = append(p.posted, hwnd)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.Destroy(hwnd)
}

func (p *Platform) doneChan(hwnd uintptr) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windows[hwnd].done
}

// Host is the fake host window returned by StartHost.
type Host struct {
	p    *Platform
	hwnd uintptr
}

// HWND implements rawinput.Host.
func (h *Host) HWND() uintptr { return h.hwnd }

// Close implements rawinput.Host. Inside a message the close is deferred
// until the message returns, like PostMessage.
func (h *Host) Close() error {
	h.p.postClose(h.hwnd)
	return nil
}

// Done implements rawinput.Host.
func (h *Host) Done() <-chan struct{} { return h.p.doneChan(h.hwnd) }
