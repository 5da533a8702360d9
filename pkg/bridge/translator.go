package bridge

import (
	"errors"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/hidreport"
	"github.com/aelman/ipad-remote/hidreport/keymap"
	"github.com/aelman/ipad-remote/internal/blesvc"
	"github.com/aelman/ipad-remote/internal/capture"
)

// reportSink is the subset of the BLE service the translator drives.
type reportSink interface {
	NotifyKeyboard(report hidreport.KeyboardReport) error
	NotifyMouse(report hidreport.MouseReport) error
}

// translator turns captured events into HID reports and pushes them to the
// sink. Pointer motion is coalesced between flushes; everything else goes
// out immediately.
type translator struct {
	log        *zap.Logger
	sink       reportSink
	keyboard   *hidreport.Keyboard
	mouse      *hidreport.Mouse
	scrollStep *atomic.Int32

	dx, dy int
}

func newTranslator(log *zap.Logger, sink reportSink, scrollStep *atomic.Int32) *translator {
	return &translator{
		log:        log,
		sink:       sink,
		keyboard:   hidreport.NewKeyboard(),
		mouse:      hidreport.NewMouse(),
		scrollStep: scrollStep,
	}
}

func (t *translator) Handle(ev capture.Event) {
	// Coalesced motion must not overtake clicks, wheel or keys.
	if ev.Type != capture.PointerMove {
		t.Flush()
	}
	switch ev.Type {
	case capture.KeyDown, capture.KeyUp:
		usage, ok := keymap.Usage(ev.Key)
		if !ok {
			t.log.Debug("Dropping unmapped key",
				zap.Uint16("code", ev.Key),
				zap.String("name", keymap.KeyName(ev.Key)))
			return
		}
		if ev.Type == capture.KeyDown {
			t.notifyKeyboard(t.keyboard.Press(usage))
		} else {
			t.notifyKeyboard(t.keyboard.Release(usage))
		}
	case capture.PointerMove:
		t.dx += int(ev.DX)
		t.dy += int(ev.DY)
	case capture.PointerButton:
		t.notifyMouse(t.mouse.SetButton(buttonBit(ev.Button), ev.Pressed))
	case capture.Scroll:
		for _, report := range t.mouse.Wheel(int(ev.Wheel) * int(t.scrollStep.Load())) {
			t.notifyMouse(report)
		}
	}
}

// Flush sends the motion accumulated since the last flush.
func (t *translator) Flush() {
	if t.dx == 0 && t.dy == 0 {
		return
	}
	for _, report := range t.mouse.Move(t.dx, t.dy) {
		t.notifyMouse(report)
	}
	t.dx, t.dy = 0, 0
}

// Reset drops tracker state so a reconnecting central never sees keys or
// buttons held before the link went away.
func (t *translator) Reset() {
	t.keyboard.Reset()
	t.mouse.Reset()
	t.dx, t.dy = 0, 0
}

// Release resets and sends empty reports so nothing stays held on the
// central across shutdown.
func (t *translator) Release() {
	t.Reset()
	t.notifyKeyboard(hidreport.KeyboardReport{})
	t.notifyMouse(hidreport.MouseReport{})
}

func (t *translator) notifyKeyboard(report hidreport.KeyboardReport) {
	err := t.sink.NotifyKeyboard(report)
	if err != nil && !errors.Is(err, blesvc.ErrNotSubscribed) {
		t.log.Warn("Failed to send keyboard report", zap.Error(err))
	}
}

func (t *translator) notifyMouse(report hidreport.MouseReport) {
	err := t.sink.NotifyMouse(report)
	if err != nil && !errors.Is(err, blesvc.ErrNotSubscribed) {
		t.log.Warn("Failed to send mouse report", zap.Error(err))
	}
}

func buttonBit(button capture.Button) uint8 {
	switch button {
	case capture.ButtonRight:
		return hidreport.ButtonRight
	case capture.ButtonMiddle:
		return hidreport.ButtonMiddle
	default:
		return hidreport.ButtonLeft
	}
}
