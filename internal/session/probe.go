package session

import (
	"context"
	"fmt"

	"github.com/verte-zerg/keytest/internal/device"
	"github.com/verte-zerg/keytest/internal/keymap"
	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
)

// ProbeEvent describes one raw keyboard record seen by Probe.
type ProbeEvent struct {
	Event    model.RawKeyEvent
	Path     string
	Internal bool
	Symbol   string
	Known    bool
}

// String formats the event on one line.
func (e ProbeEvent) String() string {
	sym := e.Symbol
	if !e.Known {
		sym = "?"
	}
	path := e.Path
	if path == "" {
		path = "<unresolved>"
	}
	return fmt.Sprintf("vk=%s scan=0x%02X e0=%t break=%t sym=%s device=%s internal=%t",
		keymap.VKName(e.Event.VKey), e.Event.MakeCode, e.Event.Extended, e.Event.Break,
		sym, path, e.Internal)
}

type probeHandler struct {
	reader   *rawinput.Reader
	resolver *device.Resolver
	fn       func(ProbeEvent)
	onErr    func(error)
}

func (h *probeHandler) HandleInput(_, lParam uintptr) {
	ev, ok, err := h.reader.Read(lParam)
	if err != nil {
		h.onErr(err)
		return
	}
	if !ok {
		return
	}
	path, internal := h.resolver.IsInternal(ev.Device)
	sym, known := keymap.Normalize(ev)
	if ev.Break {
		// Releases carry no symbol, but show what the key would map to.
		sym, known = keymap.Symbol(ev.VKey, ev.MakeCode, ev.Extended)
	}
	h.fn(ProbeEvent{Event: ev, Path: path, Internal: internal, Symbol: sym, Known: known})
}

func (h *probeHandler) HandleDestroy(uintptr) {}

// Probe captures raw keyboard input from every device and passes each
// record to fn until ctx is done or the probe window is closed. fn runs on
// the window thread and must not block. Probe counts as the active session.
func (c *Controller) Probe(ctx context.Context, title string, fn func(ProbeEvent)) error {
	if err := c.acquire("probe"); err != nil {
		return err
	}
	defer c.release()

	h := &probeHandler{
		reader: rawinput.NewReader(c.platform),
		resolver: device.NewResolver(func(handle uintptr) (string, bool) {
			return rawinput.DeviceName(c.platform, handle)
		}, c.whitelist),
		fn: fn,
		onErr: func(err error) {
			c.logger.Debug("raw input dropped", "err", err)
		},
	}

	var ic *rawinput.Interceptor
	cleanup := func() {
		if err := c.registrar.Unregister(); err != nil {
			c.logger.Warn("unregister raw input", "err", err)
		}
		if ic != nil {
			if err := ic.Restore(); err != nil {
				c.logger.Warn("restore window procedure", "err", err)
			}
		}
	}

	host, err := c.platform.StartHost(title, func(hwnd uintptr) error {
		var err error
		ic, err = rawinput.Install(c.platform, hwnd, h)
		if err != nil {
			return &SetupError{Op: "intercept window procedure", Err: err}
		}
		if err := c.registrar.Register(hwnd); err != nil {
			cleanup()
			return &SetupError{Op: "register raw input", Err: err}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return err
	}

	select {
	case <-ctx.Done():
		cleanup()
		if err := host.Close(); err != nil {
			c.logger.Warn("close probe window", "err", err)
		}
		<-host.Done()
	case <-host.Done():
		cleanup()
	}
	return nil
}
