// Package blesvc exposes the machine as a BLE HID keyboard and mouse through
// bluetoothd's GATT, advertising and agent D-Bus APIs. It owns the adapter
// lifecycle and publishes connection state changes on a bus.
package blesvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/aelman/ipad-remote/hidreport"
	"github.com/aelman/ipad-remote/pkg/bus"
)

const (
	bluezBusName = "org.bluez"

	adapterIface              = "org.bluez.Adapter1"
	deviceIface               = "org.bluez.Device1"
	agentManagerIface         = "org.bluez.AgentManager1"
	gattManagerIface          = "org.bluez.GattManager1"
	leAdvertisingManagerIface = "org.bluez.LEAdvertisingManager1"
)

type State int32

const (
	StateIdle State = iota
	StateAdvertising
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// StateChange is published whenever the peripheral moves between idle,
// advertising and connected. Peer is empty except in the connected state.
type StateChange struct {
	State State
	Peer  string
}

var defaultServiceOptions = serviceOptions{
	deviceName: "iPad Remote",
}

type serviceOptions struct {
	deviceName string
	adapter    string
	peers      *PeerStore
}

type Option func(*serviceOptions)

// WithDeviceName sets the adapter alias and the advertised local name.
func WithDeviceName(name string) Option {
	return func(o *serviceOptions) {
		o.deviceName = name
	}
}

// WithAdapter pins the peripheral to one adapter, e.g. "hci0". By default
// the first adapter that supports LE advertising is used.
func WithAdapter(name string) Option {
	return func(o *serviceOptions) {
		o.adapter = name
	}
}

// WithPeerStore records every central that connects.
func WithPeerStore(store *PeerStore) Option {
	return func(o *serviceOptions) {
		o.peers = store
	}
}

type Service struct {
	log     *zap.Logger
	options serviceOptions

	ready chan struct{}

	conn  *dbus.Conn
	tree  *hidTree
	agent *agent

	state  *atomic.Int32
	peer   *atomic.String
	states *bus.Bus[string, StateChange]
}

func New(log *zap.Logger, opts ...Option) *Service {
	options := defaultServiceOptions
	for _, opt := range opts {
		opt(&options)
	}
	svc := &Service{
		log:     log,
		options: options,
		ready:   make(chan struct{}),
		agent:   &agent{log: log.Named("agent")},
		state:   atomic.NewInt32(int32(StateIdle)),
		peer:    atomic.NewString(""),
		states:  bus.NewBus[string, StateChange](log.Named("bus")),
	}
	svc.tree = newHIDTree(log.Named("gatt"), svc.emitValue)
	return svc
}

// Start connects to the system bus, registers the HID application and starts
// advertising. It blocks until ctx is cancelled or bluetoothd becomes
// unusable, in which case it returns an error wrapping
// ErrPlatformUnavailable.
func (s *Service) Start(ctx context.Context) error {
	if err := s.states.Start(ctx); err != nil {
		return fmt.Errorf("failed to start state bus: %w", err)
	}
	<-s.states.Ready()

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	defer conn.Close()
	s.conn = conn

	adapterPath, err := s.findAdapter()
	if err != nil {
		return err
	}
	if err := s.prepareAdapter(adapterPath); err != nil {
		return err
	}
	if err := s.registerAgent(); err != nil {
		return err
	}
	// The tree must be on the bus before RegisterApplication: bluetoothd
	// walks it with GetManagedObjects during the call.
	if err := s.tree.export(conn); err != nil {
		return err
	}
	if err := s.registerApplication(adapterPath); err != nil {
		return err
	}
	if err := s.registerAdvertisement(adapterPath); err != nil {
		return err
	}
	if err := s.subscribeSignals(); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 64)
	conn.Signal(signals)

	s.setState(StateAdvertising, "")
	close(s.ready)
	s.log.Info("BLE HID peripheral ready",
		zap.String("adapter", string(adapterPath)),
		zap.String("name", s.options.deviceName),
	)

	for {
		select {
		case <-ctx.Done():
			s.teardown(adapterPath)
			return nil
		case sig := <-signals:
			if sig == nil {
				continue
			}
			if err := s.handleSignal(sig); err != nil {
				s.setState(StateIdle, "")
				return err
			}
		}
	}
}

// Ready is closed once the peripheral is advertising.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// States subscribes to state changes for the lifetime of ctx.
func (s *Service) States(ctx context.Context) <-chan bus.Message[string, StateChange] {
	return s.states.Subscribe(ctx)
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// Peer returns the address of the connected central, or "" when there is
// none.
func (s *Service) Peer() string {
	return s.peer.Load()
}

// NotifyKeyboard sends a keyboard input report to the central. Reports are
// dropped with ErrNotSubscribed until the central enables notifications.
func (s *Service) NotifyKeyboard(report hidreport.KeyboardReport) error {
	return s.tree.keyboard.Notify(report[:])
}

// NotifyMouse sends a mouse input report to the central.
func (s *Service) NotifyMouse(report hidreport.MouseReport) error {
	return s.tree.mouse.Notify(report[:])
}

func (s *Service) KeyboardSubscribed() bool {
	return s.tree.keyboard.subscribed()
}

func (s *Service) MouseSubscribed() bool {
	return s.tree.mouse.subscribed()
}

func (s *Service) findAdapter() (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := s.conn.Object(bluezBusName, "/").
		Call(objectManagerIface+".GetManagedObjects", 0).
		Store(&objects)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	var adapters []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[leAdvertisingManagerIface]; ok {
			adapters = append(adapters, path)
		}
	}
	slices.Sort(adapters)
	if len(adapters) == 0 {
		return "", fmt.Errorf("%w: no adapter supports LE advertising", ErrPlatformUnavailable)
	}
	if s.options.adapter == "" {
		return adapters[0], nil
	}
	for _, path := range adapters {
		if strings.HasSuffix(string(path), "/"+s.options.adapter) {
			return path, nil
		}
	}
	return "", fmt.Errorf("adapter %q not found", s.options.adapter)
}

func (s *Service) prepareAdapter(path dbus.ObjectPath) error {
	object := s.conn.Object(bluezBusName, path)
	props := []struct {
		name  string
		value any
	}{
		{"Powered", true},
		{"Alias", s.options.deviceName},
		{"Discoverable", true},
		{"Pairable", true},
	}
	for _, prop := range props {
		call := object.Call(propertiesIface+".Set", 0, adapterIface, prop.name, dbus.MakeVariant(prop.value))
		if call.Err != nil {
			return fmt.Errorf("failed to set adapter %s: %w", prop.name, call.Err)
		}
	}
	return nil
}

func (s *Service) registerAgent() error {
	if err := s.conn.Export(s.agent, agentPath, agentIface); err != nil {
		return fmt.Errorf("failed to export agent: %w", err)
	}
	manager := s.conn.Object(bluezBusName, "/org/bluez")
	if call := manager.Call(agentManagerIface+".RegisterAgent", 0, agentPath, agentCapability); call.Err != nil {
		return fmt.Errorf("failed to register agent: %w", call.Err)
	}
	if call := manager.Call(agentManagerIface+".RequestDefaultAgent", 0, agentPath); call.Err != nil {
		return fmt.Errorf("failed to request default agent: %w", call.Err)
	}
	return nil
}

func (s *Service) registerApplication(adapterPath dbus.ObjectPath) error {
	object := s.conn.Object(bluezBusName, adapterPath)
	call := object.Call(gattManagerIface+".RegisterApplication", 0, appPath, map[string]dbus.Variant{})
	if call.Err != nil {
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) && dbusErr.Name == "org.bluez.Error.AlreadyExists" {
			return fmt.Errorf("%w: %v", ErrAlreadyRegistered, call.Err)
		}
		return fmt.Errorf("failed to register application: %w", call.Err)
	}
	return nil
}

func (s *Service) registerAdvertisement(adapterPath dbus.ObjectPath) error {
	adv := &advertisement{log: s.log.Named("adv"), localName: s.options.deviceName}
	if err := s.conn.Export(adv, advertisementPath, leAdvertisementIface); err != nil {
		return fmt.Errorf("failed to export advertisement: %w", err)
	}
	if err := s.conn.Export(adv, advertisementPath, propertiesIface); err != nil {
		return fmt.Errorf("failed to export advertisement properties: %w", err)
	}
	object := s.conn.Object(bluezBusName, adapterPath)
	if call := object.Call(leAdvertisingManagerIface+".RegisterAdvertisement", 0, advertisementPath, map[string]dbus.Variant{}); call.Err != nil {
		return fmt.Errorf("failed to register advertisement: %w", call.Err)
	}
	return nil
}

func (s *Service) subscribeSignals() error {
	err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, deviceIface),
	)
	if err != nil {
		return fmt.Errorf("failed to match device signals: %w", err)
	}
	err = s.conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, bluezBusName),
	)
	if err != nil {
		return fmt.Errorf("failed to match bluetoothd ownership: %w", err)
	}
	return nil
}

// handleSignal returns a non-nil error only for conditions the service
// cannot recover from.
func (s *Service) handleSignal(sig *dbus.Signal) error {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) != 3 {
			return nil
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if name == bluezBusName && newOwner == "" {
			return fmt.Errorf("%w: bluetoothd left the bus", ErrPlatformUnavailable)
		}
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return nil
		}
		iface, _ := sig.Body[0].(string)
		if iface != deviceIface {
			return nil
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		connected, ok := changed["Connected"]
		if !ok {
			return nil
		}
		if value, ok := connected.Value().(bool); ok {
			if value {
				s.handleConnect(sig.Path)
			} else {
				s.handleDisconnect(sig.Path)
			}
		}
	}
	return nil
}

func (s *Service) handleConnect(path dbus.ObjectPath) {
	address := deviceAddress(path)
	s.log.Info("Central connected", zap.String("address", address))
	s.setState(StateConnected, address)
	if s.options.peers == nil {
		return
	}
	if _, err := s.options.peers.Record(address, s.deviceName(path)); err != nil {
		s.log.Warn("Failed to record peer", zap.Error(err))
	}
}

// handleDisconnect drops every subscription: the CCC state of a bond does
// not survive the link, the central re-enables notifications after
// reconnecting.
func (s *Service) handleDisconnect(path dbus.ObjectPath) {
	s.log.Info("Central disconnected", zap.String("address", deviceAddress(path)))
	s.tree.keyboard.resetNotify()
	s.tree.mouse.resetNotify()
	s.tree.battery.resetNotify()
	s.setState(StateAdvertising, "")
}

func (s *Service) deviceName(path dbus.ObjectPath) string {
	var name dbus.Variant
	err := s.conn.Object(bluezBusName, path).
		Call(propertiesIface+".Get", 0, deviceIface, "Name").
		Store(&name)
	if err != nil {
		return ""
	}
	value, _ := name.Value().(string)
	return value
}

func (s *Service) teardown(adapterPath dbus.ObjectPath) {
	object := s.conn.Object(bluezBusName, adapterPath)
	if call := object.Call(leAdvertisingManagerIface+".UnregisterAdvertisement", 0, advertisementPath); call.Err != nil {
		s.log.Warn("Failed to unregister advertisement", zap.Error(call.Err))
	}
	if call := object.Call(gattManagerIface+".UnregisterApplication", 0, appPath); call.Err != nil {
		s.log.Warn("Failed to unregister application", zap.Error(call.Err))
	}
	manager := s.conn.Object(bluezBusName, "/org/bluez")
	if call := manager.Call(agentManagerIface+".UnregisterAgent", 0, agentPath); call.Err != nil {
		s.log.Warn("Failed to unregister agent", zap.Error(call.Err))
	}
	s.setState(StateIdle, "")
	s.log.Info("BLE HID peripheral stopped")
}

func (s *Service) setState(state State, peer string) {
	s.state.Store(int32(state))
	s.peer.Store(peer)
	s.states.TryPublish(peer, StateChange{State: state, Peer: peer})
}

func (s *Service) emitValue(path dbus.ObjectPath, value []byte) error {
	if s.conn == nil {
		return errors.New("not connected to system bus")
	}
	return s.conn.Emit(path, propertiesIface+".PropertiesChanged", gattChrcIface, map[string]dbus.Variant{
		"Value": dbus.MakeVariant(value),
	}, []string{})
}

// deviceAddress recovers the MAC address from a BlueZ device object path
// such as /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF.
func deviceAddress(path dbus.ObjectPath) string {
	segment := string(path)
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if !strings.HasPrefix(segment, "dev_") {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(segment, "dev_"), "_", ":")
}
