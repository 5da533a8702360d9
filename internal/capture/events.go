package capture

import (
	"fmt"
	"strings"

	"github.com/aelman/ipad-remote/hidreport/keymap"
)

// EventType enumerates the normalized events emitted by the capture service.
type EventType uint8

const (
	KeyDown EventType = iota
	KeyUp
	PointerMove
	PointerButton
	Scroll
)

type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// Event is one normalized input event. Key carries the evdev key code for
// KeyDown/KeyUp, Button and Pressed describe PointerButton, DX/DY carry
// PointerMove deltas and Wheel carries Scroll steps.
type Event struct {
	Type    EventType
	Key     uint16
	Button  Button
	Pressed bool
	DX      int32
	DY      int32
	Wheel   int32
}

// Chord is a hotkey combination such as "ctrl+alt+q". Modifier tokens match
// either of their left/right keys; every other token names a single key.
type Chord struct {
	mods [][]uint16
	keys []uint16
	raw  string
}

func ParseChord(s string) (Chord, error) {
	chord := Chord{raw: s}
	for _, token := range strings.Split(s, "+") {
		token = strings.TrimSpace(token)
		if token == "" {
			return Chord{}, fmt.Errorf("empty token in chord %q", s)
		}
		if class, ok := modifierClass(token); ok {
			chord.mods = append(chord.mods, class)
			continue
		}
		code, ok := keymap.KeyCode(token)
		if !ok {
			return Chord{}, fmt.Errorf("unknown key %q in chord %q", token, s)
		}
		chord.keys = append(chord.keys, code)
	}
	if len(chord.keys) == 0 {
		return Chord{}, fmt.Errorf("chord %q has no non-modifier key", s)
	}
	return chord, nil
}

// MustParseChord is ParseChord for literals wired into defaults.
func MustParseChord(s string) Chord {
	chord, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return chord
}

func modifierClass(name string) ([]uint16, bool) {
	switch strings.ToLower(name) {
	case "ctrl", "control":
		return classCodes("left_ctrl", "right_ctrl"), true
	case "shift":
		return classCodes("left_shift", "right_shift"), true
	case "alt":
		return classCodes("left_alt", "right_alt"), true
	case "meta", "super", "cmd":
		return classCodes("left_meta", "right_meta"), true
	}
	return nil, false
}

func classCodes(names ...string) []uint16 {
	codes := make([]uint16, 0, len(names))
	for _, name := range names {
		if code, ok := keymap.KeyCode(name); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// Matches reports whether every part of the chord is in the held set.
// Extra held keys do not prevent a match.
func (c Chord) Matches(held map[uint16]struct{}) bool {
	if len(c.keys) == 0 {
		return false
	}
	for _, key := range c.keys {
		if _, ok := held[key]; !ok {
			return false
		}
	}
	for _, class := range c.mods {
		found := false
		for _, key := range class {
			if _, ok := held[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c Chord) String() string {
	return c.raw
}
