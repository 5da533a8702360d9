// Package capture reads raw keyboard and pointer activity from the local
// input subsystem and publishes a stream of normalized events, gated by
// target-window focus and a shutdown hotkey.
//
// Key events always feed the hotkey tracker, but nothing is published while
// the target window is unfocused. Focus changes mid-burst may let a few
// stray events through; consumers tolerate that.
package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aelman/ipad-remote/pkg/bus"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var defaultServiceOptions = serviceOptions{
	focusPollInterval: 300 * time.Millisecond,
	rescanInterval:    5 * time.Second,
	hotkey:            MustParseChord("ctrl+alt+q"),
}

type serviceOptions struct {
	focusPollInterval time.Duration
	rescanInterval    time.Duration
	grab              bool
	focusTarget       string
	hotkey            Chord
	focusProbe        func() (string, error)
}

type Option func(*serviceOptions)

// WithGrab takes the input devices exclusively so captured events do not
// also reach the local desktop. Applies to devices opened after Start.
func WithGrab(grab bool) Option {
	return func(o *serviceOptions) {
		o.grab = grab
	}
}

func WithFocusPollInterval(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.focusPollInterval = d
	}
}

func WithRescanInterval(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.rescanInterval = d
	}
}

// WithFocusTarget gates event publishing on the focused window title
// containing title. An empty target disables the gate.
func WithFocusTarget(title string) Option {
	return func(o *serviceOptions) {
		o.focusTarget = title
	}
}

func WithHotkey(chord Chord) Option {
	return func(o *serviceOptions) {
		o.hotkey = chord
	}
}

// WithFocusProbe replaces the platform active-window probe.
func WithFocusProbe(probe func() (string, error)) Option {
	return func(o *serviceOptions) {
		o.focusProbe = probe
	}
}

type sourceEvent struct {
	node  string
	event Event
}

type Service struct {
	log     *zap.Logger
	options serviceOptions
	ready   chan struct{}

	events *bus.Bus[string, Event]
	raw    chan sourceEvent

	hotkeyCh   chan struct{}
	hotkeyOnce sync.Once

	focused *atomic.Bool
	target  *atomic.String

	mu    sync.Mutex
	chord Chord
	held  map[uint16]struct{}

	readers *xsync.MapOf[string, context.CancelFunc]
}

func New(log *zap.Logger, opts ...Option) *Service {
	options := defaultServiceOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.focusProbe == nil {
		options.focusProbe = activeWindowTitle
	}
	return &Service{
		log:      log,
		options:  options,
		ready:    make(chan struct{}),
		events:   bus.NewBus[string, Event](log.Named("bus"), bus.WithBuffer(256)),
		raw:      make(chan sourceEvent, 256),
		hotkeyCh: make(chan struct{}),
		focused:  atomic.NewBool(options.focusTarget == ""),
		target:   atomic.NewString(options.focusTarget),
		chord:    options.hotkey,
		held:     make(map[uint16]struct{}),
		readers:  xsync.NewMapOf[string, context.CancelFunc](),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Hotkey is closed once when the shutdown chord is pressed.
func (s *Service) Hotkey() <-chan struct{} {
	return s.hotkeyCh
}

// Subscribe returns the normalized event stream. Message keys are device
// nodes.
func (s *Service) Subscribe(ctx context.Context) <-chan bus.Message[string, Event] {
	return s.events.Subscribe(ctx)
}

func (s *Service) SetFocusTarget(title string) {
	s.target.Store(title)
	if title == "" {
		s.focused.Store(true)
	}
}

func (s *Service) SetHotkey(chord Chord) {
	s.mu.Lock()
	s.chord = chord
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	err := s.events.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.events.Ready():
	}

	devices, err := ListDevices()
	if err != nil {
		return fmt.Errorf("failed to list input devices: %w", err)
	}
	started := 0
	for _, dev := range devices {
		if !dev.Keyboard && !dev.Pointer {
			continue
		}
		if s.startReader(ctx, dev) {
			started++
		}
	}
	if started == 0 {
		return fmt.Errorf("no readable input devices found (run as root or join the input group)")
	}

	go s.focusLoop(ctx)
	go s.hotplugLoop(ctx)

	close(s.ready)
	s.log.Info("Input capture started", zap.Int("devices", started))

	for {
		select {
		case <-ctx.Done():
			return nil
		case se := <-s.raw:
			s.handle(ctx, se)
		}
	}
}

func (s *Service) handle(ctx context.Context, se sourceEvent) {
	ev := se.event
	if ev.Type == KeyDown || ev.Type == KeyUp {
		if s.trackChord(ev) {
			return
		}
	}
	if !s.focused.Load() {
		return
	}
	s.events.Publish(ctx, se.node, ev)
}

// trackChord updates the held-key set and reports whether the event
// completed the shutdown chord. The completing key press is consumed.
func (s *Service) trackChord(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Type == KeyUp {
		delete(s.held, ev.Key)
		return false
	}
	s.held[ev.Key] = struct{}{}
	if !s.chord.Matches(s.held) {
		return false
	}
	chord := s.chord
	s.hotkeyOnce.Do(func() {
		s.log.Info("Shutdown hotkey pressed", zap.String("chord", chord.String()))
		close(s.hotkeyCh)
	})
	return true
}

func (s *Service) focusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.options.focusPollInterval)
	defer ticker.Stop()
	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			target := s.target.Load()
			if target == "" {
				s.focused.Store(true)
				continue
			}
			title, err := s.options.focusProbe()
			if err != nil {
				// Without focus information the gate fails open.
				if !warned {
					s.log.Warn("Window focus probe unavailable, forwarding all input", zap.Error(err))
					warned = true
				}
				s.focused.Store(true)
				continue
			}
			s.focused.Store(strings.Contains(title, target))
		}
	}
}

func (s *Service) startReader(ctx context.Context, dev DeviceInfo) bool {
	if _, ok := s.readers.Load(dev.Node); ok {
		return false
	}
	f, err := openDevice(dev.Node, s.options.grab)
	if err != nil {
		s.log.Warn("Failed to open input device", zap.String("device", dev.Node), zap.Error(err))
		return false
	}
	rctx, cancel := context.WithCancel(ctx)
	if _, loaded := s.readers.LoadOrStore(dev.Node, cancel); loaded {
		cancel()
		f.Close()
		return false
	}
	s.log.Info("Capturing input device",
		zap.String("device", dev.Node),
		zap.String("name", dev.Name),
		zap.Bool("keyboard", dev.Keyboard),
		zap.Bool("pointer", dev.Pointer))
	go func() {
		defer s.readers.Delete(dev.Node)
		err := s.readDevice(rctx, dev.Node, f)
		if err != nil && rctx.Err() == nil {
			s.log.Warn("Input device closed", zap.String("device", dev.Node), zap.Error(err))
		}
	}()
	return true
}

func (s *Service) rescan(ctx context.Context) {
	devices, err := ListDevices()
	if err != nil {
		s.log.Error("Failed to rescan input devices", zap.Error(err))
		return
	}
	for _, dev := range devices {
		if !dev.Keyboard && !dev.Pointer {
			continue
		}
		s.startReader(ctx, dev)
	}
}
