// Package bridge wires local input capture to the BLE HID peripheral: it
// owns the logger, the peer database and the settings file, and pumps
// captured events through the report translator into GATT notifications.
package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aelman/ipad-remote/internal/blesvc"
	"github.com/aelman/ipad-remote/internal/capture"
	"github.com/aelman/ipad-remote/internal/configsvc"
)

// motionFlushInterval paces coalesced pointer motion, roughly one report
// per BLE connection event.
const motionFlushInterval = 10 * time.Millisecond

type Bridge struct {
	config Config
	log    *zap.Logger

	db        *badger.DB
	peers     *blesvc.PeerStore
	configSvc *configsvc.Service

	scrollStep *atomic.Int32

	mu         sync.Mutex
	captureSvc *capture.Service
	bleSvc     *blesvc.Service
}

func NewBridge(config Config) (*Bridge, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Bridge{
		config:     config,
		log:        logger,
		db:         db,
		peers:      blesvc.NewPeerStore(db, time.Now),
		configSvc:  configsvc.New(logger.Named("config")),
		scrollStep: atomic.NewInt32(int32(defaultSettings().ScrollStep)),
	}, nil
}

func (b *Bridge) Close() error {
	return b.db.Close()
}

func (b *Bridge) Peers() *blesvc.PeerStore {
	return b.peers
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts all services and blocks until the context is cancelled, the
// shutdown hotkey fires or a service fails.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return b.configSvc.Start(groupCtx)
	})

	select {
	case <-groupCtx.Done():
		if err := group.Wait(); err != nil {
			return fmt.Errorf("bridge failed: %w", err)
		}
		return nil
	case <-b.configSvc.Ready():
	}

	settings, err := configsvc.RegisterWriteable(b.configSvc, b.config.Settings, defaultSettings(), b.onSettingsChange)
	if err != nil {
		cancel()
		group.Wait()
		return fmt.Errorf("failed to load settings: %w", err)
	}
	b.buildServices(settings)

	group.Go(func() error {
		return b.captureSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return b.bleSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return b.pump(groupCtx, cancel)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("bridge failed: %w", err)
	}
	return nil
}

func (b *Bridge) buildServices(settings Settings) {
	hotkey, err := capture.ParseChord(settings.Hotkey)
	if err != nil {
		b.log.Warn("Invalid hotkey, using default",
			zap.String("hotkey", settings.Hotkey),
			zap.String("default", defaultSettings().Hotkey),
			zap.Error(err))
		hotkey = capture.MustParseChord(defaultSettings().Hotkey)
	}
	step := settings.ScrollStep
	if step < 1 {
		step = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollStep.Store(int32(step))
	b.captureSvc = capture.New(b.log.Named("capture"),
		capture.WithGrab(settings.Grab),
		capture.WithFocusTarget(settings.FocusTarget),
		capture.WithHotkey(hotkey),
	)
	b.bleSvc = blesvc.New(b.log.Named("ble"),
		blesvc.WithDeviceName(settings.DeviceName),
		blesvc.WithAdapter(settings.Adapter),
		blesvc.WithPeerStore(b.peers),
	)
}

func (b *Bridge) onSettingsChange(settings Settings, err error) {
	if err != nil {
		b.log.Error("Failed to reload settings", zap.Error(err))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captureSvc == nil {
		return
	}
	b.captureSvc.SetFocusTarget(settings.FocusTarget)
	if chord, err := capture.ParseChord(settings.Hotkey); err == nil {
		b.captureSvc.SetHotkey(chord)
	} else {
		b.log.Warn("Ignoring invalid hotkey", zap.String("hotkey", settings.Hotkey), zap.Error(err))
	}
	step := settings.ScrollStep
	if step < 1 {
		step = 1
	}
	b.scrollStep.Store(int32(step))
	b.log.Info("Settings reloaded",
		zap.String("focusTarget", settings.FocusTarget),
		zap.String("hotkey", settings.Hotkey),
		zap.Int32("scrollStep", b.scrollStep.Load()))
}

// pump moves captured events into GATT notifications on a single goroutine,
// which keeps reports in order per characteristic.
func (b *Bridge) pump(ctx context.Context, cancel context.CancelFunc) error {
	select {
	case <-ctx.Done():
		return nil
	case <-b.captureSvc.Ready():
	}
	select {
	case <-ctx.Done():
		return nil
	case <-b.bleSvc.Ready():
	}

	events := b.captureSvc.Subscribe(ctx)
	states := b.bleSvc.States(ctx)
	flush := time.NewTicker(motionFlushInterval)
	defer flush.Stop()

	tr := newTranslator(b.log.Named("bridge"), b.bleSvc, b.scrollStep)
	b.log.Info("Bridge running")

	for {
		select {
		case <-ctx.Done():
			tr.Release()
			return nil
		case <-b.captureSvc.Hotkey():
			b.log.Info("Stopping on shutdown hotkey")
			tr.Release()
			cancel()
			return nil
		case <-flush.C:
			tr.Flush()
		case msg := <-events:
			tr.Handle(msg.Message)
		case msg := <-states:
			if msg.Message.State != blesvc.StateConnected {
				tr.Reset()
			}
		}
	}
}
