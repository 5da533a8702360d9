package blesvc

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/hidreport"
)

type notifyRecorder struct {
	paths  []dbus.ObjectPath
	values [][]byte
}

func (r *notifyRecorder) notify(path dbus.ObjectPath, value []byte) error {
	r.paths = append(r.paths, path)
	r.values = append(r.values, append([]byte(nil), value...))
	return nil
}

func newTestTree(t *testing.T) (*hidTree, *notifyRecorder) {
	t.Helper()
	rec := &notifyRecorder{}
	return newHIDTree(zap.NewNop(), rec.notify), rec
}

func findCharacteristic(t *testing.T, tree *hidTree, uuid string) *characteristic {
	t.Helper()
	for _, svc := range tree.app.services {
		for _, chrc := range svc.chrcs {
			if chrc.uuid == uuid {
				return chrc
			}
		}
	}
	t.Fatalf("characteristic %s not found", uuid)
	return nil
}

func TestSubscriptionGating(t *testing.T) {
	tree, rec := newTestTree(t)
	report := []byte{0, 0, 4, 0, 0, 0, 0, 0}

	err := tree.keyboard.Notify(report)
	require.ErrorIs(t, err, ErrNotSubscribed)
	assert.Empty(t, rec.values)

	require.Nil(t, tree.keyboard.StartNotify())
	require.NoError(t, tree.keyboard.Notify(report))
	require.Len(t, rec.values, 1)
	assert.Equal(t, report, rec.values[0])
	assert.Equal(t, tree.keyboard.path, rec.paths[0])

	value, derr := tree.keyboard.ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, report, value)

	require.Nil(t, tree.keyboard.StopNotify())
	err = tree.keyboard.Notify(report)
	require.ErrorIs(t, err, ErrNotSubscribed)
	assert.Len(t, rec.values, 1)
}

func TestStartNotifyIdempotent(t *testing.T) {
	tree, _ := newTestTree(t)
	for i := 0; i < 3; i++ {
		require.Nil(t, tree.mouse.StartNotify())
		assert.True(t, tree.mouse.subscribed())
	}
	for i := 0; i < 3; i++ {
		require.Nil(t, tree.mouse.StopNotify())
		assert.False(t, tree.mouse.subscribed())
	}
}

func TestKeyboardOnlySubscribed(t *testing.T) {
	tree, rec := newTestTree(t)
	require.Nil(t, tree.keyboard.StartNotify())

	require.NoError(t, tree.keyboard.Notify(make([]byte, 8)))
	err := tree.mouse.Notify(make([]byte, 4))
	require.ErrorIs(t, err, ErrNotSubscribed)
	assert.Len(t, rec.values, 1)
}

func TestNotifyUnsupported(t *testing.T) {
	tree, _ := newTestTree(t)
	reportMap := findCharacteristic(t, tree, reportMapUUID)
	derr := reportMap.StartNotify()
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.NotSupported", derr.Name)
}

func TestGetManagedObjects(t *testing.T) {
	tree, _ := newTestTree(t)
	objects, derr := tree.app.GetManagedObjects()
	require.Nil(t, derr)
	// 3 services, 9 characteristics, 2 report reference descriptors
	assert.Len(t, objects, 14)

	svc, ok := objects[appPath+"/service0"]
	require.True(t, ok)
	props := svc[gattServiceIface]
	assert.Equal(t, hidServiceUUID, props["UUID"].Value())
	assert.Equal(t, true, props["Primary"].Value())

	kbd, ok := objects[tree.keyboard.path]
	require.True(t, ok)
	chrcProps := kbd[gattChrcIface]
	assert.Equal(t, reportUUID, chrcProps["UUID"].Value())
	assert.Equal(t, []string{"read", "notify"}, chrcProps["Flags"].Value())

	_, ok = objects[tree.keyboard.path+"/desc0"]
	assert.True(t, ok)
	_, ok = objects[tree.mouse.path+"/desc0"]
	assert.True(t, ok)
}

func TestReportReferences(t *testing.T) {
	tree, _ := newTestTree(t)

	value, derr := tree.keyboard.descriptors[0].ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, []byte{hidreport.KeyboardReportID, 0x01}, value)

	value, derr = tree.mouse.descriptors[0].ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, []byte{hidreport.MouseReportID, 0x01}, value)
}

func TestCharacteristicDefaults(t *testing.T) {
	tree, _ := newTestTree(t)
	cases := []struct {
		uuid  string
		value []byte
	}{
		{hidInformationUUID, []byte{0x11, 0x01, 0x00, 0x03}},
		{protocolModeUUID, []byte{0x01}},
		{manufacturerUUID, []byte("Linux HID")},
		{pnpIDUUID, []byte{0x02, 0x34, 0x12, 0x78, 0x56, 0x00, 0x01}},
		{batteryLevelUUID, []byte{100}},
	}
	for _, c := range cases {
		chrc := findCharacteristic(t, tree, c.uuid)
		value, derr := chrc.ReadValue(nil)
		require.Nil(t, derr)
		assert.Equal(t, c.value, value, "uuid %s", c.uuid)
	}

	reportMap := findCharacteristic(t, tree, reportMapUUID)
	value, derr := reportMap.ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, hidreport.ReportMap, value)
}

func TestControlPointWrite(t *testing.T) {
	tree, _ := newTestTree(t)
	cp := findCharacteristic(t, tree, controlPointUUID)

	require.Nil(t, cp.WriteValue([]byte{0x01}, nil))
	value, derr := cp.ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, []byte{0x01}, value)

	require.Nil(t, cp.WriteValue([]byte{0x00}, nil))
	value, derr = cp.ReadValue(nil)
	require.Nil(t, derr)
	assert.Equal(t, []byte{0x00}, value)
}

func TestGetAllWrongInterface(t *testing.T) {
	tree, _ := newTestTree(t)
	_, derr := tree.keyboard.GetAll(gattServiceIface)
	require.NotNil(t, derr)
	assert.Equal(t, "org.freedesktop.DBus.Error.InvalidArgs", derr.Name)
}

func TestAdvertisementProperties(t *testing.T) {
	adv := &advertisement{log: zap.NewNop(), localName: "Test Remote"}

	props, derr := adv.GetAll(leAdvertisementIface)
	require.Nil(t, derr)
	assert.Equal(t, "peripheral", props["Type"].Value())
	assert.Equal(t, "Test Remote", props["LocalName"].Value())
	assert.Equal(t, keyboardAppearance, props["Appearance"].Value())
	assert.Equal(t, []string{hidServiceUUID}, props["ServiceUUIDs"].Value())
	assert.Equal(t, true, props["Discoverable"].Value())

	_, derr = adv.GetAll(gattServiceIface)
	assert.NotNil(t, derr)
}
