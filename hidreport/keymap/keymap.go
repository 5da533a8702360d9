//go:build !generate

// Package keymap translates Linux evdev key codes into HID usages on the
// Keyboard/Keypad usage page. The table is generated from data/keymap.md
// and covers the keys the bridge forwards; everything else is unmapped and
// dropped by the caller.
package keymap

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

var (
	nameReverseMap = map[string]uint16{}
	keyNameMap     = map[uint16]string{}
	usageMap       = map[uint16]uint8{}
)

func init() {
	for _, key := range keys {
		nameReverseMap[key.Name] = key.Code
		keyNameMap[key.Code] = key.Name
		usageMap[key.Code] = key.Usage
	}
}

// Usage returns the HID usage for an evdev key code. ok is false for codes
// outside the table.
func Usage(code uint16) (uint8, bool) {
	usage, ok := usageMap[code]
	return usage, ok
}

func KeyName(code uint16) string {
	name, ok := keyNameMap[code]
	if !ok {
		return fmt.Sprintf("0x%x", code)
	}
	return name
}

// KeyCode resolves a key name to its evdev code. Names are tried as
// written, lowercased, and in snake_case form, so "PageUp" and "page-up"
// resolve the same row as "page_up". Unknown names return false.
func KeyCode(name string) (uint16, bool) {
	for _, n := range []string{name, strings.ToLower(name), strcase.ToSnake(name)} {
		if code, ok := nameReverseMap[n]; ok {
			return code, ok
		}
	}
	return 0, false
}

// IsModifierUsage reports whether a HID usage is one of the eight modifier
// usages that land in the report's modifier byte instead of a key slot.
func IsModifierUsage(usage uint8) bool {
	return usage >= 0xE0 && usage <= 0xE7
}
