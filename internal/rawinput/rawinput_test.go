package rawinput_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
	"github.com/verte-zerg/keytest/internal/rawinput/rawinputtest"
)

type recordingHandler struct {
	reader    *rawinput.Reader
	events    []model.RawKeyEvent
	errs      []error
	destroyed []uintptr
	onInput   func()
}

func (h *recordingHandler) HandleInput(_, lParam uintptr) {
	ev, ok, err := h.reader.Read(lParam)
	if err != nil {
		h.errs = append(h.errs, err)
		return
	}
	if ok {
		h.events = append(h.events, ev)
	}
	if h.onInput != nil {
		h.onInput()
	}
}

func (h *recordingHandler) HandleDestroy(hwnd uintptr) {
	h.destroyed = append(h.destroyed, hwnd)
}

func TestInstallForwardsUnhandledMessages(t *testing.T) {
	p := rawinputtest.New()
	p.ForwardResult = 77
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}

	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ic.Restore() })
	assert.Equal(t, rawinputtest.TrampolineAddr, p.Proc(hwnd))

	const wmSize = 0x0005
	ret := p.Send(hwnd, wmSize, 1, 0x00C80140)
	assert.Equal(t, uintptr(77), ret)
	require.Len(t, p.Received(), 1)
	assert.Equal(t, rawinputtest.Message{HWND: hwnd, Msg: wmSize, WParam: 1, LParam: 0x00C80140}, p.Received()[0])
}

func TestInstallConsumesInput(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}
	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ic.Restore() })

	p.SendKey(hwnd, model.RawKeyEvent{Device: 9, VKey: 0x41, MakeCode: 0x1E})
	require.Len(t, h.events, 1)
	assert.Equal(t, uint16(0x41), h.events[0].VKey)
	assert.Equal(t, uintptr(9), h.events[0].Device)
	assert.Empty(t, p.Received(), "WM_INPUT must not reach the original procedure")
}

func TestInstallRejectsInvalidAndDuplicateWindows(t *testing.T) {
	p := rawinputtest.New()
	h := &recordingHandler{reader: rawinput.NewReader(p)}

	_, err := rawinput.Install(p, 0xBAD, h)
	assert.ErrorIs(t, err, rawinput.ErrInvalidWindow)

	hwnd := p.AddWindow()
	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ic.Restore() })

	_, err = rawinput.Install(p, hwnd, h)
	assert.ErrorIs(t, err, rawinput.ErrAlreadyIntercepted)
}

func TestInstallFailureLeavesWindowFree(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}

	p.FailSetProc = errors.New("access denied")
	_, err := rawinput.Install(p, hwnd, h)
	require.Error(t, err)

	p.FailSetProc = nil
	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)
	require.NoError(t, ic.Restore())
}

func TestRestoreIsIdempotent(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}
	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)

	require.NoError(t, ic.Restore())
	assert.Equal(t, p.OriginalProc(hwnd), p.Proc(hwnd))
	assert.False(t, ic.Installed())
	require.NoError(t, ic.Restore())
	assert.Equal(t, p.OriginalProc(hwnd), p.Proc(hwnd))

	_, handled := rawinput.Dispatch(hwnd, rawinput.WMInput, 0, 0)
	assert.False(t, handled)
}

func TestRestoreAfterWindowIsGone(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}
	ic, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)

	p.Destroy(hwnd)
	assert.Equal(t, []uintptr{hwnd}, h.destroyed)
	assert.False(t, ic.Installed())
	require.NoError(t, ic.Restore())
}

func TestDestroyRestoresInsideHandler(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	h := &recordingHandler{reader: rawinput.NewReader(p)}
	_, err := rawinput.Install(p, hwnd, h)
	require.NoError(t, err)

	p.Send(hwnd, rawinput.WMNCDestroy, 0, 0)
	assert.Equal(t, p.OriginalProc(hwnd), p.Proc(hwnd))
	msgs := p.Received()
	require.Len(t, msgs, 1)
	assert.Equal(t, uint32(rawinput.WMNCDestroy), msgs[0].Msg)
}

func TestReaderRejectsShortCopy(t *testing.T) {
	p := rawinputtest.New()
	lParam := p.StoreRecord(rawinput.EncodeKeyboard(model.RawKeyEvent{VKey: 0x41}))
	p.ShortCopy = true

	_, _, err := rawinput.NewReader(p).Read(lParam)
	assert.ErrorIs(t, err, rawinput.ErrShortRead)
}

func TestReaderReusesBuffer(t *testing.T) {
	p := rawinputtest.New()
	r := rawinput.NewReader(p)
	for _, vk := range []uint16{0x41, 0x42, 0x43} {
		lParam := p.StoreRecord(rawinput.EncodeKeyboard(model.RawKeyEvent{VKey: vk}))
		ev, ok, err := r.Read(lParam)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, vk, ev.VKey)
	}
}

func TestRegistrarRedirectsInsteadOfStacking(t *testing.T) {
	p := rawinputtest.New()
	first := p.AddWindow()
	second := p.AddWindow()
	reg := rawinput.NewRegistrar(p)

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))

	dev, ok := p.Registration()
	require.True(t, ok)
	assert.Equal(t, second, dev.Target)
	assert.Equal(t, uint16(rawinput.UsagePageGeneric), dev.UsagePage)
	assert.Equal(t, uint16(rawinput.UsageKeyboard), dev.Usage)
	assert.Equal(t, uint32(rawinput.RIDEVInputSink|rawinput.RIDEVNoLegacy), dev.Flags)

	require.NoError(t, reg.Unregister())
	_, ok = p.Registration()
	assert.False(t, ok, "one unregister restores ordinary delivery")
	_, active := reg.Target()
	assert.False(t, active)
}

func TestRegistrarUnregisterRunsOnce(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	reg := rawinput.NewRegistrar(p)

	require.NoError(t, reg.Unregister())
	assert.Empty(t, p.RegisterCalls())

	require.NoError(t, reg.Register(hwnd))
	require.NoError(t, reg.Unregister())
	require.NoError(t, reg.Unregister())

	calls := p.RegisterCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, uint32(rawinput.RIDEVRemove), calls[1].Flags)
	assert.Zero(t, calls[1].Target)
}

func TestRegistrarSurfacesRefusal(t *testing.T) {
	p := rawinputtest.New()
	hwnd := p.AddWindow()
	p.FailRegister = errors.New("access denied")
	reg := rawinput.NewRegistrar(p)

	require.Error(t, reg.Register(hwnd))
	_, active := reg.Target()
	assert.False(t, active)
}

func TestDeviceNameAndKeyboards(t *testing.T) {
	p := rawinputtest.New()
	p.AddKeyboard(1, `\\?\ACPI#MSF0001#1`)
	p.AddKeyboard(2, "")

	name, ok := rawinput.DeviceName(p, 1)
	require.True(t, ok)
	assert.Equal(t, `\\?\ACPI#MSF0001#1`, name)

	_, ok = rawinput.DeviceName(p, 2)
	assert.False(t, ok)

	kbs, err := rawinput.Keyboards(p)
	require.NoError(t, err)
	require.Len(t, kbs, 2)
	assert.Equal(t, `\\?\ACPI#MSF0001#1`, kbs[0].Path)
	assert.Empty(t, kbs[1].Path)
}
