package blesvc

import (
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	advertisementPath    = dbus.ObjectPath("/org/bluez/hid/advertisement0")
	leAdvertisementIface = "org.bluez.LEAdvertisement1"

	// 0x03C0 is generic HID, 0x03C1 keyboard, 0x03C2 mouse. The keyboard
	// appearance makes tablets show a keyboard icon while pairing.
	keyboardAppearance uint16 = 0x03C1
)

// advertisement is the LE advertising payload: a connectable peripheral
// carrying the HID service UUID.
type advertisement struct {
	log       *zap.Logger
	localName string
}

func (a *advertisement) properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Type":         dbus.MakeVariant("peripheral"),
		"LocalName":    dbus.MakeVariant(a.localName),
		"Appearance":   dbus.MakeVariant(keyboardAppearance),
		"ServiceUUIDs": dbus.MakeVariant([]string{hidServiceUUID}),
		"Discoverable": dbus.MakeVariant(true),
	}
}

func (a *advertisement) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != leAdvertisementIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
	}
	return a.properties(), nil
}

func (a *advertisement) Release() *dbus.Error {
	a.log.Debug("Advertisement released")
	return nil
}
