package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/hidreport"
	"github.com/aelman/ipad-remote/internal/blesvc"
	"github.com/aelman/ipad-remote/internal/capture"
)

type fakeSink struct {
	subscribed bool
	keyboard   []hidreport.KeyboardReport
	mouse      []hidreport.MouseReport
}

func (f *fakeSink) NotifyKeyboard(report hidreport.KeyboardReport) error {
	if !f.subscribed {
		return blesvc.ErrNotSubscribed
	}
	f.keyboard = append(f.keyboard, report)
	return nil
}

func (f *fakeSink) NotifyMouse(report hidreport.MouseReport) error {
	if !f.subscribed {
		return blesvc.ErrNotSubscribed
	}
	f.mouse = append(f.mouse, report)
	return nil
}

func newTestTranslator(scrollStep int32) (*translator, *fakeSink) {
	sink := &fakeSink{subscribed: true}
	return newTranslator(zap.NewNop(), sink, atomic.NewInt32(scrollStep)), sink
}

func TestTranslatorKeyRoundTrip(t *testing.T) {
	tr, sink := newTestTranslator(1)

	// KEY_LEFTCTRL then KEY_A, released in reverse order
	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 29})
	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 30})
	tr.Handle(capture.Event{Type: capture.KeyUp, Key: 30})
	tr.Handle(capture.Event{Type: capture.KeyUp, Key: 29})

	require.Len(t, sink.keyboard, 4)
	assert.Equal(t, hidreport.KeyboardReport{hidreport.ModLeftCtrl, 0, 0, 0, 0, 0, 0, 0}, sink.keyboard[0])
	assert.Equal(t, hidreport.KeyboardReport{hidreport.ModLeftCtrl, 0, 0x04, 0, 0, 0, 0, 0}, sink.keyboard[1])
	assert.Equal(t, hidreport.KeyboardReport{hidreport.ModLeftCtrl, 0, 0, 0, 0, 0, 0, 0}, sink.keyboard[2])
	assert.Equal(t, hidreport.KeyboardReport{}, sink.keyboard[3])
}

func TestTranslatorUnmappedKeyDropped(t *testing.T) {
	tr, sink := newTestTranslator(1)
	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 65000})
	tr.Handle(capture.Event{Type: capture.KeyUp, Key: 65000})
	assert.Empty(t, sink.keyboard)
}

func TestTranslatorMotionCoalescing(t *testing.T) {
	tr, sink := newTestTranslator(1)

	tr.Handle(capture.Event{Type: capture.PointerMove, DX: 3, DY: -2})
	tr.Handle(capture.Event{Type: capture.PointerMove, DX: 4, DY: -1})
	tr.Handle(capture.Event{Type: capture.PointerMove, DX: -1, DY: 0})
	assert.Empty(t, sink.mouse, "motion waits for a flush")

	tr.Flush()
	require.Len(t, sink.mouse, 1)
	assert.Equal(t, hidreport.MouseReport{0, 6, -3 & 0xff, 0}, sink.mouse[0])

	tr.Flush()
	assert.Len(t, sink.mouse, 1, "empty flush sends nothing")
}

func TestTranslatorMotionFlushedBeforeClick(t *testing.T) {
	tr, sink := newTestTranslator(1)

	tr.Handle(capture.Event{Type: capture.PointerMove, DX: 5, DY: 5})
	tr.Handle(capture.Event{Type: capture.PointerButton, Button: capture.ButtonRight, Pressed: true})

	require.Len(t, sink.mouse, 2)
	assert.Equal(t, hidreport.MouseReport{0, 5, 5, 0}, sink.mouse[0])
	assert.Equal(t, hidreport.MouseReport{hidreport.ButtonRight, 0, 0, 0}, sink.mouse[1])

	tr.Handle(capture.Event{Type: capture.PointerButton, Button: capture.ButtonRight, Pressed: false})
	require.Len(t, sink.mouse, 3)
	assert.Equal(t, hidreport.MouseReport{0, 0, 0, 0}, sink.mouse[2])
}

func TestTranslatorMotionFlushedBeforeKey(t *testing.T) {
	tr, sink := newTestTranslator(1)

	tr.Handle(capture.Event{Type: capture.PointerMove, DX: 2, DY: 0})
	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 30})

	require.Len(t, sink.mouse, 1)
	require.Len(t, sink.keyboard, 1)
}

func TestTranslatorScrollStep(t *testing.T) {
	tr, sink := newTestTranslator(3)

	tr.Handle(capture.Event{Type: capture.Scroll, Wheel: 1})
	tr.Handle(capture.Event{Type: capture.Scroll, Wheel: -1})

	require.Len(t, sink.mouse, 2)
	assert.Equal(t, hidreport.MouseReport{0, 0, 0, 3}, sink.mouse[0])
	assert.Equal(t, hidreport.MouseReport{0, 0, 0, -3 & 0xff}, sink.mouse[1])
}

func TestTranslatorNotSubscribedDropped(t *testing.T) {
	tr, sink := newTestTranslator(1)
	sink.subscribed = false

	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 30})
	tr.Handle(capture.Event{Type: capture.PointerButton, Button: capture.ButtonLeft, Pressed: true})
	assert.Empty(t, sink.keyboard)
	assert.Empty(t, sink.mouse)

	// reports flow again once the central subscribes
	sink.subscribed = true
	tr.Handle(capture.Event{Type: capture.KeyUp, Key: 30})
	require.Len(t, sink.keyboard, 1)
	assert.Equal(t, hidreport.KeyboardReport{}, sink.keyboard[0])
}

func TestTranslatorReleaseSendsEmptyReports(t *testing.T) {
	tr, sink := newTestTranslator(1)

	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 30})
	tr.Handle(capture.Event{Type: capture.PointerButton, Button: capture.ButtonLeft, Pressed: true})
	tr.Handle(capture.Event{Type: capture.PointerMove, DX: 9, DY: 9})
	tr.Release()

	require.NotEmpty(t, sink.keyboard)
	require.NotEmpty(t, sink.mouse)
	assert.Equal(t, hidreport.KeyboardReport{}, sink.keyboard[len(sink.keyboard)-1])
	assert.Equal(t, hidreport.MouseReport{}, sink.mouse[len(sink.mouse)-1])
}

func TestTranslatorResetDropsHeldKeys(t *testing.T) {
	tr, sink := newTestTranslator(1)

	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 30})
	tr.Reset()
	tr.Handle(capture.Event{Type: capture.KeyDown, Key: 48})

	require.Len(t, sink.keyboard, 2)
	assert.Equal(t, hidreport.KeyboardReport{0, 0, 0x05, 0, 0, 0, 0, 0}, sink.keyboard[1],
		"no stale key from before the reset")
}

func TestButtonBit(t *testing.T) {
	assert.Equal(t, hidreport.ButtonLeft, buttonBit(capture.ButtonLeft))
	assert.Equal(t, hidreport.ButtonRight, buttonBit(capture.ButtonRight))
	assert.Equal(t, hidreport.ButtonMiddle, buttonBit(capture.ButtonMiddle))
}

func TestSettingsReload(t *testing.T) {
	b := &Bridge{log: zap.NewNop(), scrollStep: atomic.NewInt32(3)}

	// before the services exist a reload is a no-op
	b.onSettingsChange(Settings{ScrollStep: 5}, nil)
	assert.Equal(t, int32(3), b.scrollStep.Load())

	b.buildServices(defaultSettings())
	b.onSettingsChange(Settings{FocusTarget: "iPad", Hotkey: "ctrl+alt+x", ScrollStep: 5}, nil)
	assert.Equal(t, int32(5), b.scrollStep.Load())

	// invalid hotkey keeps the previous chord, other settings still apply
	b.onSettingsChange(Settings{Hotkey: "ctrl+no_such_key", ScrollStep: 0}, nil)
	assert.Equal(t, int32(1), b.scrollStep.Load(), "scroll step is clamped to 1")
}
