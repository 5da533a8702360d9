// Package hidreport encodes captured input activity into the fixed-layout
// USB HID reports declared by the bridge's report map: an 8-byte keyboard
// report (report ID 1) and a 4-byte mouse report (report ID 2). Everything
// here is pure state and bytes, no I/O.
package hidreport

// Report IDs of the two logical devices in the composite report map.
const (
	KeyboardReportID uint8 = 1
	MouseReportID    uint8 = 2
)

// Keyboard modifier bits, byte 0 of the keyboard report.
const (
	ModLeftCtrl   uint8 = 0x01
	ModLeftShift  uint8 = 0x02
	ModLeftAlt    uint8 = 0x04
	ModLeftGUI    uint8 = 0x08
	ModRightCtrl  uint8 = 0x10
	ModRightShift uint8 = 0x20
	ModRightAlt   uint8 = 0x40
	ModRightGUI   uint8 = 0x80
)

// Mouse button bits, byte 0 of the mouse report.
const (
	ButtonLeft   uint8 = 0x01
	ButtonRight  uint8 = 0x02
	ButtonMiddle uint8 = 0x04
)

const (
	modifierUsageMin uint8 = 0xE0
	modifierUsageMax uint8 = 0xE7

	keySlots = 6

	// Logical range of the X/Y/wheel fields in the report map.
	deltaMin = -127
	deltaMax = 127
)

// KeyboardReport is the wire layout of report ID 1:
// [modifiers, reserved, key1 .. key6].
type KeyboardReport [8]byte

// MouseReport is the wire layout of report ID 2:
// [buttons, dx, dy, wheel] with deltas encoded as signed bytes.
type MouseReport [4]byte

// Keyboard tracks the currently held keys and modifiers and renders them as
// keyboard reports. Key slots are packed left in first-press order, with no
// duplicates. Modifier usages (0xE0..0xE7) only ever set bits in byte 0 and
// never occupy a key slot. Holding more than six keys is tolerated: the
// excess stays tracked and enters the report once a slot frees up.
type Keyboard struct {
	modifiers uint8
	held      []uint8
}

func NewKeyboard() *Keyboard {
	return &Keyboard{held: make([]uint8, 0, keySlots)}
}

// Press adds a usage code to the held state and returns the report
// reflecting all currently held keys.
func (k *Keyboard) Press(usage uint8) KeyboardReport {
	if bit, ok := ModifierBit(usage); ok {
		k.modifiers |= bit
		return k.Report()
	}
	for _, u := range k.held {
		if u == usage {
			return k.Report()
		}
	}
	k.held = append(k.held, usage)
	return k.Report()
}

// Release removes a usage code from the held state, re-packing the
// remaining keys left, and returns the resulting report.
func (k *Keyboard) Release(usage uint8) KeyboardReport {
	if bit, ok := ModifierBit(usage); ok {
		k.modifiers &^= bit
		return k.Report()
	}
	for i, u := range k.held {
		if u == usage {
			k.held = append(k.held[:i], k.held[i+1:]...)
			break
		}
	}
	return k.Report()
}

// Report renders the current held state without changing it.
func (k *Keyboard) Report() KeyboardReport {
	var r KeyboardReport
	r[0] = k.modifiers
	n := len(k.held)
	if n > keySlots {
		n = keySlots
	}
	for i := 0; i < n; i++ {
		r[2+i] = k.held[i]
	}
	return r
}

// Reset drops all held keys and modifiers. Used when the link is lost so a
// reconnecting peer never starts from stale key state.
func (k *Keyboard) Reset() {
	k.modifiers = 0
	k.held = k.held[:0]
}

// ModifierBit maps a modifier usage (LeftCtrl 0xE0 .. RightGUI 0xE7) to its
// bit in byte 0 of the keyboard report.
func ModifierBit(usage uint8) (uint8, bool) {
	if usage < modifierUsageMin || usage > modifierUsageMax {
		return 0, false
	}
	return 1 << (usage - modifierUsageMin), true
}

// Mouse tracks button state and renders pointer activity as mouse reports.
type Mouse struct {
	buttons uint8
}

func NewMouse() *Mouse {
	return &Mouse{}
}

// SetButton updates a button bit and returns the single report carrying the
// change, with zero motion.
func (m *Mouse) SetButton(button uint8, pressed bool) MouseReport {
	if pressed {
		m.buttons |= button
	} else {
		m.buttons &^= button
	}
	return MouseReport{m.buttons, 0, 0, 0}
}

// Move returns the reports covering a relative motion of (dx, dy). Deltas
// outside the signed-byte range are split across several reports; per axis
// the emitted values always sum to the requested delta. A zero motion
// yields no reports.
func (m *Mouse) Move(dx, dy int) []MouseReport {
	return m.split(dx, dy, 0)
}

// Wheel returns the reports covering a wheel delta, split the same way as
// Move.
func (m *Mouse) Wheel(delta int) []MouseReport {
	return m.split(0, 0, delta)
}

// Reset clears the button state.
func (m *Mouse) Reset() {
	m.buttons = 0
}

func (m *Mouse) split(dx, dy, wheel int) []MouseReport {
	var out []MouseReport
	for dx != 0 || dy != 0 || wheel != 0 {
		sx := clampDelta(dx)
		sy := clampDelta(dy)
		sw := clampDelta(wheel)
		dx -= sx
		dy -= sy
		wheel -= sw
		out = append(out, MouseReport{m.buttons, byte(int8(sx)), byte(int8(sy)), byte(int8(sw))})
	}
	return out
}

func clampDelta(v int) int {
	if v > deltaMax {
		return deltaMax
	}
	if v < deltaMin {
		return deltaMin
	}
	return v
}
