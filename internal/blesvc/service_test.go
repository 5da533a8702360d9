package blesvc

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/pkg/bus"
)

func deviceSignal(path dbus.ObjectPath, connected bool) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{
			deviceIface,
			map[string]dbus.Variant{"Connected": dbus.MakeVariant(connected)},
			[]string{},
		},
	}
}

func TestDisconnectResetsSubscriptions(t *testing.T) {
	svc := New(zap.NewNop())
	require.Nil(t, svc.tree.keyboard.StartNotify())
	require.Nil(t, svc.tree.mouse.StartNotify())
	require.Nil(t, svc.tree.battery.StartNotify())

	devicePath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	require.NoError(t, svc.handleSignal(deviceSignal(devicePath, true)))
	assert.Equal(t, StateConnected, svc.State())
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", svc.Peer())

	require.NoError(t, svc.handleSignal(deviceSignal(devicePath, false)))
	assert.Equal(t, StateAdvertising, svc.State())
	assert.Empty(t, svc.Peer())
	assert.False(t, svc.KeyboardSubscribed())
	assert.False(t, svc.MouseSubscribed())
	assert.False(t, svc.tree.battery.subscribed())

	// after reconnecting the central has to subscribe again
	require.NoError(t, svc.handleSignal(deviceSignal(devicePath, true)))
	assert.False(t, svc.KeyboardSubscribed())
	require.Nil(t, svc.tree.keyboard.StartNotify())
	assert.True(t, svc.KeyboardSubscribed())
}

func TestBluezOwnerLossIsFatal(t *testing.T) {
	svc := New(zap.NewNop())

	sig := &dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []any{"org.bluez", ":1.3", ""},
	}
	require.ErrorIs(t, svc.handleSignal(sig), ErrPlatformUnavailable)

	// a new owner appearing is not fatal
	sig.Body = []any{"org.bluez", "", ":1.7"}
	require.NoError(t, svc.handleSignal(sig))

	// other names are ignored
	sig.Body = []any{"org.freedesktop.NetworkManager", ":1.2", ""}
	require.NoError(t, svc.handleSignal(sig))
}

func TestUnrelatedSignalsIgnored(t *testing.T) {
	svc := New(zap.NewNop())

	// Battery1 property changes on the device path carry another interface
	sig := &dbus.Signal{
		Path: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{
			"org.bluez.Battery1",
			map[string]dbus.Variant{"Percentage": dbus.MakeVariant(byte(80))},
			[]string{},
		},
	}
	require.NoError(t, svc.handleSignal(sig))
	assert.Equal(t, StateIdle, svc.State())

	// Device1 changes without Connected leave the state alone
	sig.Body = []any{
		deviceIface,
		map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))},
		[]string{},
	}
	require.NoError(t, svc.handleSignal(sig))
	assert.Equal(t, StateIdle, svc.State())
}

func TestStateChangesPublished(t *testing.T) {
	svc := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.states.Start(ctx))
	<-svc.states.Ready()

	changes := svc.States(ctx)
	devicePath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	require.NoError(t, svc.handleSignal(deviceSignal(devicePath, true)))
	require.NoError(t, svc.handleSignal(deviceSignal(devicePath, false)))

	first := expectStateChange(t, changes)
	assert.Equal(t, StateConnected, first.State)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", first.Peer)

	second := expectStateChange(t, changes)
	assert.Equal(t, StateAdvertising, second.State)
	assert.Empty(t, second.Peer)
}

func expectStateChange(t *testing.T, ch <-chan bus.Message[string, StateChange]) StateChange {
	t.Helper()
	select {
	case msg := <-ch:
		return msg.Message
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state change")
		return StateChange{}
	}
}

func TestDeviceAddress(t *testing.T) {
	cases := []struct {
		path dbus.ObjectPath
		want string
	}{
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", "AA:BB:CC:DD:EE:FF"},
		{"/org/bluez/hci1/dev_00_11_22_33_44_55", "00:11:22:33:44:55"},
		{"/org/bluez/hci0", ""},
		{"/", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, deviceAddress(c.path), "path %q", c.path)
	}
}
