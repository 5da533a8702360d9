package blesvc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/hidreport"
)

const (
	appPath = dbus.ObjectPath("/org/bluez/hid")

	gattServiceIface   = "org.bluez.GattService1"
	gattChrcIface      = "org.bluez.GattCharacteristic1"
	gattDescIface      = "org.bluez.GattDescriptor1"
	propertiesIface    = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"

	hidServiceUUID     = "1812"
	deviceInfoUUID     = "180a"
	batteryServiceUUID = "180f"

	hidInformationUUID  = "2a4a"
	reportMapUUID       = "2a4b"
	controlPointUUID    = "2a4c"
	reportUUID          = "2a4d"
	protocolModeUUID    = "2a4e"
	manufacturerUUID    = "2a29"
	pnpIDUUID           = "2a50"
	batteryLevelUUID    = "2a19"
	reportReferenceUUID = "2908"

	manufacturerName        = "Linux HID"
	pnpVendorID      uint16 = 0x1234
	pnpProductID     uint16 = 0x5678
	pnpVersion       uint16 = 0x0100

	inputReportType byte = 0x01
)

// notifyFunc delivers a characteristic value change to the bus as a
// PropertiesChanged signal. bluetoothd relays it to subscribed centrals
// as an ATT notification.
type notifyFunc func(path dbus.ObjectPath, value []byte) error

// application is the ObjectManager root that BlueZ walks during
// RegisterApplication.
type application struct {
	path     dbus.ObjectPath
	services []*gattService
}

func (a *application) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	for _, svc := range a.services {
		objects[svc.path] = map[string]map[string]dbus.Variant{
			gattServiceIface: svc.properties(),
		}
		for _, chrc := range svc.chrcs {
			objects[chrc.path] = map[string]map[string]dbus.Variant{
				gattChrcIface: chrc.properties(),
			}
			for _, desc := range chrc.descriptors {
				objects[desc.path] = map[string]map[string]dbus.Variant{
					gattDescIface: desc.properties(),
				}
			}
		}
	}
	return objects, nil
}

type gattService struct {
	path  dbus.ObjectPath
	uuid  string
	chrcs []*characteristic
}

func (s *gattService) properties() map[string]dbus.Variant {
	paths := make([]dbus.ObjectPath, 0, len(s.chrcs))
	for _, chrc := range s.chrcs {
		paths = append(paths, chrc.path)
	}
	return map[string]dbus.Variant{
		"UUID":            dbus.MakeVariant(s.uuid),
		"Primary":         dbus.MakeVariant(true),
		"Characteristics": dbus.MakeVariant(paths),
	}
}

func (s *gattService) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != gattServiceIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
	}
	return s.properties(), nil
}

type characteristic struct {
	log         *zap.Logger
	path        dbus.ObjectPath
	uuid        string
	service     dbus.ObjectPath
	flags       []string
	descriptors []*descriptor

	mu    sync.Mutex
	value []byte

	// notifying is nil for characteristics without the notify flag.
	notifying *atomic.Bool
	notify    notifyFunc
	onWrite   func(value []byte)
}

func (c *characteristic) properties() map[string]dbus.Variant {
	paths := make([]dbus.ObjectPath, 0, len(c.descriptors))
	for _, desc := range c.descriptors {
		paths = append(paths, desc.path)
	}
	return map[string]dbus.Variant{
		"Service":     dbus.MakeVariant(c.service),
		"UUID":        dbus.MakeVariant(c.uuid),
		"Flags":       dbus.MakeVariant(c.flags),
		"Descriptors": dbus.MakeVariant(paths),
	}
}

func (c *characteristic) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != gattChrcIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
	}
	return c.properties(), nil
}

func (c *characteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := make([]byte, len(c.value))
	copy(value, c.value)
	return value, nil
}

func (c *characteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
	if c.onWrite != nil {
		c.onWrite(value)
	}
	return nil
}

// StartNotify is the observable surface of the central's CCC write:
// bluetoothd owns the 0x2902 descriptor on the wire and calls this when
// notifications are enabled. Repeat calls are harmless.
func (c *characteristic) StartNotify() *dbus.Error {
	if c.notifying == nil {
		return dbus.NewError("org.bluez.Error.NotSupported", nil)
	}
	if !c.notifying.Swap(true) {
		c.log.Info("Notifications enabled", zap.String("uuid", c.uuid), zap.String("path", string(c.path)))
	}
	return nil
}

func (c *characteristic) StopNotify() *dbus.Error {
	if c.notifying == nil {
		return dbus.NewError("org.bluez.Error.NotSupported", nil)
	}
	if c.notifying.Swap(false) {
		c.log.Info("Notifications disabled", zap.String("uuid", c.uuid), zap.String("path", string(c.path)))
	}
	return nil
}

func (c *characteristic) subscribed() bool {
	return c.notifying != nil && c.notifying.Load()
}

func (c *characteristic) resetNotify() {
	if c.notifying != nil {
		c.notifying.Store(false)
	}
}

// Notify sends value to the subscribed central and remembers it for
// subsequent reads. Returns ErrNotSubscribed while the flag is off.
func (c *characteristic) Notify(value []byte) error {
	if !c.subscribed() {
		return ErrNotSubscribed
	}
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
	return c.notify(c.path, value)
}

type descriptor struct {
	path  dbus.ObjectPath
	uuid  string
	chrc  dbus.ObjectPath
	value []byte
}

func (d *descriptor) properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Characteristic": dbus.MakeVariant(d.chrc),
		"UUID":           dbus.MakeVariant(d.uuid),
		"Flags":          dbus.MakeVariant([]string{"read"}),
	}
}

func (d *descriptor) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != gattDescIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
	}
	return d.properties(), nil
}

func (d *descriptor) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	value := make([]byte, len(d.value))
	copy(value, d.value)
	return value, nil
}

// hidTree is the exported GATT hierarchy: the HID service plus the device
// information and battery services that centrals probe before accepting a
// HID peripheral.
type hidTree struct {
	app      *application
	keyboard *characteristic
	mouse    *characteristic
	battery  *characteristic
}

func newHIDTree(log *zap.Logger, notify notifyFunc) *hidTree {
	hid := &gattService{path: appPath + "/service0", uuid: hidServiceUUID}
	info := &gattService{path: appPath + "/service1", uuid: deviceInfoUUID}
	battery := &gattService{path: appPath + "/service2", uuid: batteryServiceUUID}

	hidInfo := &characteristic{
		log:     log,
		path:    hid.path + "/char0",
		uuid:    hidInformationUUID,
		service: hid.path,
		flags:   []string{"read"},
		// bcdHID 1.11, no country code, RemoteWake|NormallyConnectable
		value: []byte{0x11, 0x01, 0x00, 0x03},
	}
	reportMap := &characteristic{
		log:     log,
		path:    hid.path + "/char1",
		uuid:    reportMapUUID,
		service: hid.path,
		flags:   []string{"read"},
		value:   hidreport.ReportMap,
	}
	protocolMode := &characteristic{
		log:     log,
		path:    hid.path + "/char2",
		uuid:    protocolModeUUID,
		service: hid.path,
		flags:   []string{"read", "write-without-response"},
		value:   []byte{0x01}, // report protocol
	}
	protocolMode.onWrite = func(value []byte) {
		if len(value) == 1 && value[0] == 0x00 {
			log.Warn("Central requested boot protocol")
		}
	}
	controlPoint := &characteristic{
		log:     log,
		path:    hid.path + "/char3",
		uuid:    controlPointUUID,
		service: hid.path,
		flags:   []string{"write-without-response"},
		value:   []byte{0x00},
	}
	controlPoint.onWrite = func(value []byte) {
		if len(value) == 0 {
			return
		}
		switch value[0] {
		case 0x00:
			log.Debug("Suspend requested")
		case 0x01:
			log.Debug("Exit suspend requested")
		}
	}
	keyboard := &characteristic{
		log:       log,
		path:      hid.path + "/char4",
		uuid:      reportUUID,
		service:   hid.path,
		flags:     []string{"read", "notify"},
		value:     make([]byte, 8),
		notifying: atomic.NewBool(false),
		notify:    notify,
	}
	keyboard.descriptors = []*descriptor{{
		path:  keyboard.path + "/desc0",
		uuid:  reportReferenceUUID,
		chrc:  keyboard.path,
		value: []byte{hidreport.KeyboardReportID, inputReportType},
	}}
	mouse := &characteristic{
		log:       log,
		path:      hid.path + "/char5",
		uuid:      reportUUID,
		service:   hid.path,
		flags:     []string{"read", "notify"},
		value:     make([]byte, 4),
		notifying: atomic.NewBool(false),
		notify:    notify,
	}
	mouse.descriptors = []*descriptor{{
		path:  mouse.path + "/desc0",
		uuid:  reportReferenceUUID,
		chrc:  mouse.path,
		value: []byte{hidreport.MouseReportID, inputReportType},
	}}
	hid.chrcs = []*characteristic{hidInfo, reportMap, protocolMode, controlPoint, keyboard, mouse}

	manufacturer := &characteristic{
		log:     log,
		path:    info.path + "/char0",
		uuid:    manufacturerUUID,
		service: info.path,
		flags:   []string{"read"},
		value:   []byte(manufacturerName),
	}
	pnp := make([]byte, 7)
	pnp[0] = 0x02 // vendor ID source: USB
	binary.LittleEndian.PutUint16(pnp[1:3], pnpVendorID)
	binary.LittleEndian.PutUint16(pnp[3:5], pnpProductID)
	binary.LittleEndian.PutUint16(pnp[5:7], pnpVersion)
	pnpID := &characteristic{
		log:     log,
		path:    info.path + "/char1",
		uuid:    pnpIDUUID,
		service: info.path,
		flags:   []string{"read"},
		value:   pnp,
	}
	info.chrcs = []*characteristic{manufacturer, pnpID}

	level := &characteristic{
		log:       log,
		path:      battery.path + "/char0",
		uuid:      batteryLevelUUID,
		service:   battery.path,
		flags:     []string{"read", "notify"},
		value:     []byte{100},
		notifying: atomic.NewBool(false),
		notify:    notify,
	}
	battery.chrcs = []*characteristic{level}

	return &hidTree{
		app:      &application{path: appPath, services: []*gattService{hid, info, battery}},
		keyboard: keyboard,
		mouse:    mouse,
		battery:  level,
	}
}

// export registers every object of the tree on the connection.
func (t *hidTree) export(conn *dbus.Conn) error {
	if err := conn.Export(t.app, t.app.path, objectManagerIface); err != nil {
		return fmt.Errorf("failed to export application: %w", err)
	}
	for _, svc := range t.app.services {
		if err := conn.Export(svc, svc.path, propertiesIface); err != nil {
			return fmt.Errorf("failed to export service %s: %w", svc.uuid, err)
		}
		for _, chrc := range svc.chrcs {
			if err := conn.Export(chrc, chrc.path, gattChrcIface); err != nil {
				return fmt.Errorf("failed to export characteristic %s: %w", chrc.uuid, err)
			}
			if err := conn.Export(chrc, chrc.path, propertiesIface); err != nil {
				return fmt.Errorf("failed to export characteristic %s properties: %w", chrc.uuid, err)
			}
			for _, desc := range chrc.descriptors {
				if err := conn.Export(desc, desc.path, gattDescIface); err != nil {
					return fmt.Errorf("failed to export descriptor %s: %w", desc.uuid, err)
				}
				if err := conn.Export(desc, desc.path, propertiesIface); err != nil {
					return fmt.Errorf("failed to export descriptor %s properties: %w", desc.uuid, err)
				}
			}
		}
	}
	return nil
}
