package blesvc

import (
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	agentPath       = dbus.ObjectPath("/org/bluez/hid/agent")
	agentIface      = "org.bluez.Agent1"
	agentCapability = "KeyboardDisplay"
)

// agent answers every pairing prompt in the affirmative. Any central that
// completes pairing gets full input control; the bridge is meant for a
// tablet sitting next to the keyboard that drives it.
type agent struct {
	log *zap.Logger
}

func (a *agent) Release() *dbus.Error {
	a.log.Debug("Agent released")
	return nil
}

func (a *agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	a.log.Debug("Authorizing service", zap.String("device", string(device)), zap.String("uuid", uuid))
	return nil
}

func (a *agent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	a.log.Info("PIN code requested", zap.String("device", string(device)))
	return "0000", nil
}

func (a *agent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	a.log.Info("PIN code displayed", zap.String("device", string(device)), zap.String("pincode", pincode))
	return nil
}

func (a *agent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	a.log.Info("Passkey requested", zap.String("device", string(device)))
	return 0, nil
}

func (a *agent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	a.log.Info("Passkey displayed", zap.String("device", string(device)), zap.Uint32("passkey", passkey), zap.Uint16("entered", entered))
	return nil
}

func (a *agent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	a.log.Info("Confirming pairing", zap.String("device", string(device)), zap.Uint32("passkey", passkey))
	return nil
}

func (a *agent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	a.log.Info("Authorizing pairing", zap.String("device", string(device)))
	return nil
}

func (a *agent) Cancel() *dbus.Error {
	a.log.Warn("Pairing cancelled by peer")
	return nil
}
