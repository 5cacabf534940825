// Package session runs keyboard test sessions on a raw input platform.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/keytest/internal/device"
	"github.com/verte-zerg/keytest/internal/keymap"
	"github.com/verte-zerg/keytest/internal/logging"
	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
	"github.com/verte-zerg/keytest/internal/tracker"
)

// ErrSessionActive is returned when a session or probe is already running.
var ErrSessionActive = errors.New("keyboard test already running")

// SetupError reports a session that could not start. Nothing stays
// installed or registered after it is returned, so Open may be retried.
type SetupError struct {
	Op     string
	Err    error
	Result model.Result
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("keyboard test setup: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Options configures one session.
type Options struct {
	Title      string
	LayoutName string
	Layout     []string
}

// Controller owns the process-wide raw input registration and admits one
// session at a time.
type Controller struct {
	platform  rawinput.Platform
	registrar *rawinput.Registrar
	whitelist device.Whitelist
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	active bool
}

// NewController returns a controller for p.
func NewController(p rawinput.Platform, wl device.Whitelist, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{
		platform:  p,
		registrar: rawinput.NewRegistrar(p),
		whitelist: wl,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *Controller) acquire(what string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.logger.Warn("request rejected, a keyboard test is already running", "request", what)
		return ErrSessionActive
	}
	c.active = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Active reports whether a session or probe is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Open starts a session: it creates the test window, intercepts its window
// procedure and registers raw keyboard input for it. A *SetupError is
// returned when any step fails.
func (c *Controller) Open(opts Options) (*Session, error) {
	if err := c.acquire("open"); err != nil {
		return nil, err
	}
	s := newSession(c, opts)
	s.logger.Info("keyboard test starting", "keys", s.tracker.Total())

	host, err := c.platform.StartHost(opts.Title, s.setup)
	if err != nil {
		s.teardown()
		c.release()
		var setupErr *SetupError
		if !errors.As(err, &setupErr) {
			setupErr = &SetupError{Op: "create test window", Err: err}
		}
		setupErr.Result = s.erroredResult(setupErr)
		s.logger.Error("keyboard test setup failed", "op", setupErr.Op, "err", setupErr.Err)
		return nil, setupErr
	}
	s.host = host
	go s.run()
	return s, nil
}

// Session is one running keyboard test.
type Session struct {
	c       *Controller
	opts    Options
	logger  *slog.Logger
	tracker *tracker.Tracker
	devices *deviceLog
	reader  *rawinput.Reader
	// resolver caches device names for this session only.
	resolver *device.Resolver

	host   rawinput.Host
	events chan model.Progress
	passed chan struct{}
	done   chan struct{}

	passOnce sync.Once

	mu        sync.Mutex
	ic        *rawinput.Interceptor
	startedAt time.Time
	endedAt   time.Time
	status    model.Status
	failed    []string
}

func newSession(c *Controller, opts Options) *Session {
	t := tracker.New(opts.Layout)
	return &Session{
		c:       c,
		opts:    opts,
		logger:  c.logger.With("layout", opts.LayoutName),
		tracker: t,
		devices: newDeviceLog(),
		reader:  rawinput.NewReader(c.platform),
		resolver: device.NewResolver(func(h uintptr) (string, bool) {
			return rawinput.DeviceName(c.platform, h)
		}, c.whitelist),
		events:    make(chan model.Progress, t.Total()+1),
		passed:    make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: c.now(),
	}
}

// setup runs on the window thread before the first message is pumped.
func (s *Session) setup(hwnd uintptr) error {
	if err := s.tracker.Start(); err != nil {
		return &SetupError{Op: "start tracker", Err: err}
	}
	ic, err := rawinput.Install(s.c.platform, hwnd, s)
	if err != nil {
		return &SetupError{Op: "intercept window procedure", Err: err}
	}
	s.mu.Lock()
	s.ic = ic
	s.mu.Unlock()

	if err := s.c.registrar.Register(hwnd); err != nil {
		s.teardown()
		return &SetupError{Op: "register raw input", Err: err}
	}
	s.logger.Debug("raw input registered", "hwnd", fmt.Sprintf("0x%X", hwnd))
	if s.tracker.State() == tracker.Passed {
		s.pass()
	}
	return nil
}

// HandleInput implements rawinput.Handler.
func (s *Session) HandleInput(_, lParam uintptr) {
	ev, ok, err := s.reader.Read(lParam)
	if err != nil {
		s.logger.Debug("raw input dropped", "err", err)
		return
	}
	if !ok {
		return
	}
	path, internal := s.resolver.IsInternal(ev.Device)
	s.devices.count(ev.Device, path, internal)
	s.logger.Log(context.Background(), logging.LevelTrace, "raw key",
		"vk", keymap.VKName(ev.VKey),
		"scan", fmt.Sprintf("0x%02X", ev.MakeCode),
		"e0", ev.Extended,
		"break", ev.Break,
		"device", path,
		"internal", internal,
	)
	if !internal {
		return
	}
	sym, ok := keymap.Normalize(ev)
	if !ok {
		return
	}
	if !s.tracker.Observe(sym) {
		return
	}
	p := model.Progress{Symbol: sym, Remaining: s.tracker.RemainingCount(), Total: s.tracker.Total()}
	select {
	case s.events <- p:
	default:
	}
	if s.tracker.State() == tracker.Passed {
		s.pass()
	}
}

// HandleDestroy implements rawinput.Handler. The window is closing; a
// session that has not passed is aborted here.
func (s *Session) HandleDestroy(uintptr) {
	if failed, ok := s.tracker.Abort(); ok {
		s.finish(model.StatusAborted, failed)
	}
	if err := s.c.registrar.Unregister(); err != nil {
		s.logger.Warn("unregister raw input", "err", err)
	}
}

func (s *Session) pass() {
	s.passOnce.Do(func() {
		s.finish(model.StatusPassed, nil)
		s.teardown()
		close(s.passed)
	})
}

// teardown restores the window procedure and unregisters raw input. Both
// steps are idempotent.
func (s *Session) teardown() {
	if err := s.c.registrar.Unregister(); err != nil {
		s.logger.Warn("unregister raw input", "err", err)
	}
	s.mu.Lock()
	ic := s.ic
	s.mu.Unlock()
	if ic == nil {
		return
	}
	if err := ic.Restore(); err != nil {
		s.logger.Warn("restore window procedure", "err", err)
	}
}

func (s *Session) finish(status model.Status, failed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != "" {
		return
	}
	s.status = status
	s.failed = failed
	s.endedAt = s.c.now()
}

func (s *Session) run() {
	select {
	case <-s.passed:
		if err := s.host.Close(); err != nil {
			s.logger.Warn("close test window", "err", err)
		}
		<-s.host.Done()
	case <-s.host.Done():
	}
	s.teardown()
	if failed, ok := s.tracker.Abort(); ok {
		s.finish(model.StatusAborted, failed)
	}

	res := s.Result()
	s.logger.Info("keyboard test finished",
		"status", res.Status,
		"failed", len(res.FailedKeys),
		"duration", res.Duration().Round(time.Millisecond),
	)
	close(s.events)
	s.c.release()
	close(s.done)
}

// Events delivers a notification each time a required key is observed.
// Notifications are dropped when the reader falls behind. The channel is
// closed when the session ends.
func (s *Session) Events() <-chan model.Progress {
	return s.events
}

// Done is closed once the session has ended and been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (model.Result, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		return model.Result{}, ctx.Err()
	}
}

// Close asks the test window to close. A session that has not passed by
// then is aborted.
func (s *Session) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	return s.host.Close()
}

// Snapshot returns the keys not yet pressed, sorted.
func (s *Session) Snapshot() []string {
	return s.tracker.Remaining()
}

// Total returns the number of keys in the layout.
func (s *Session) Total() int {
	return s.tracker.Total()
}

// Pending reports whether sym still has to be pressed.
func (s *Session) Pending(sym string) bool {
	return s.tracker.Pending(sym)
}

// Result returns the outcome so far. Status is empty while running.
func (s *Session) Result() model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Result{
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		Status:     s.status,
		Layout:     s.opts.LayoutName,
		TotalKeys:  s.tracker.Total(),
		FailedKeys: append([]string(nil), s.failed...),
		Devices:    s.devices.snapshot(),
	}
}

func (s *Session) erroredResult(err error) model.Result {
	now := s.c.now()
	return model.Result{
		StartedAt: s.startedAt,
		EndedAt:   now,
		Status:    model.StatusErrored,
		Layout:    s.opts.LayoutName,
		TotalKeys: s.tracker.Total(),
		Error:     err.Error(),
	}
}
