package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	evKey = 0x01
	evRel = 0x02

	relX     = 0x00
	relY     = 0x01
	relWheel = 0x08

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	keyA = 30

	// eviocgrab is the EVIOCGRAB ioctl, _IOW('E', 0x90, int);
	// golang.org/x/sys/unix does not export EVIOC* request numbers.
	eviocgrab = 0x40044590
)

// inputEvent matches the 64-bit Linux input_event struct.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// DeviceInfo describes one discovered input device.
type DeviceInfo struct {
	Node     string
	Name     string
	Keyboard bool
	Pointer  bool
}

const inputDevicesPath = "/proc/bus/input/devices"

// ListDevices scans the kernel input device registry and classifies
// keyboards and pointers by their KEY/REL capability bitmaps.
func ListDevices() ([]DeviceInfo, error) {
	f, err := os.Open(inputDevicesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseInputDevices(f)
}

func parseInputDevices(r io.Reader) ([]DeviceInfo, error) {
	var (
		devices []DeviceInfo
		current DeviceInfo
		keyBits []uint64
		relBits []uint64
	)
	flush := func() {
		if current.Node != "" {
			current.Keyboard = hasBit(keyBits, keyA)
			current.Pointer = hasBit(relBits, relX) || hasBit(keyBits, btnLeft)
			devices = append(devices, current)
		}
		current = DeviceInfo{}
		keyBits, relBits = nil, nil
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			current.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), "\"")
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(part, "event") {
					current.Node = "/dev/input/" + part
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			keyBits = parseBitmap(strings.TrimPrefix(line, "B: KEY="))
		case strings.HasPrefix(line, "B: REL="):
			relBits = parseBitmap(strings.TrimPrefix(line, "B: REL="))
		case line == "":
			flush()
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// parseBitmap decodes a capability bitmap as printed by the kernel:
// space-separated hex words, most significant first.
func parseBitmap(s string) []uint64 {
	fields := strings.Fields(s)
	bits := make([]uint64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseUint(field, 16, 64)
		if err != nil {
			continue
		}
		bits[len(fields)-1-i] = v
	}
	return bits
}

func hasBit(bits []uint64, code uint16) bool {
	word := int(code) / 64
	if word >= len(bits) {
		return false
	}
	return bits[word]&(1<<(uint(code)%64)) != 0
}

func openDevice(node string, grab bool) (*os.File, error) {
	f, err := os.OpenFile(node, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if grab {
		if err := grabDevice(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to grab device: %w", err)
		}
	}
	return f, nil
}

// grabDevice takes the device exclusively. The kernel drops the grab when
// the descriptor is closed. SyscallConn keeps the file in non-blocking
// mode so a concurrent Close still interrupts a pending read.
func grabDevice(f *os.File) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), eviocgrab, 1)
	}); err != nil {
		return err
	}
	return ioctlErr
}

func (s *Service) readDevice(ctx context.Context, node string, f *os.File) error {
	go func() {
		<-ctx.Done()
		f.Close()
	}()
	for {
		var ev inputEvent
		if err := binary.Read(f, binary.LittleEndian, &ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		event, ok := translate(ev)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case s.raw <- sourceEvent{node: node, event: event}:
		}
	}
}

func translate(ev inputEvent) (Event, bool) {
	switch ev.Type {
	case evKey:
		if ev.Value == 2 { // autorepeat
			return Event{}, false
		}
		switch ev.Code {
		case btnLeft:
			return Event{Type: PointerButton, Button: ButtonLeft, Pressed: ev.Value == 1}, true
		case btnRight:
			return Event{Type: PointerButton, Button: ButtonRight, Pressed: ev.Value == 1}, true
		case btnMiddle:
			return Event{Type: PointerButton, Button: ButtonMiddle, Pressed: ev.Value == 1}, true
		}
		if ev.Value == 1 {
			return Event{Type: KeyDown, Key: ev.Code}, true
		}
		return Event{Type: KeyUp, Key: ev.Code}, true
	case evRel:
		switch ev.Code {
		case relX:
			return Event{Type: PointerMove, DX: ev.Value}, true
		case relY:
			return Event{Type: PointerMove, DY: ev.Value}, true
		case relWheel:
			return Event{Type: Scroll, Wheel: ev.Value}, true
		}
	}
	return Event{}, false
}

func (s *Service) hotplugLoop(ctx context.Context) {
	var hotplug <-chan *udev.Device
	u := udev.Udev{}
	monitor := u.NewMonitorFromNetlink("udev")
	if monitor != nil {
		monitor.FilterAddMatchSubsystem("input")
		ch, err := monitor.DeviceChan(ctx)
		if err != nil {
			s.log.Warn("udev monitor unavailable, relying on periodic rescan", zap.Error(err))
		} else {
			hotplug = ch
		}
	}
	ticker := time.NewTicker(s.options.rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case dev, ok := <-hotplug:
			if !ok {
				hotplug = nil
				continue
			}
			if dev.Action() != "add" {
				continue
			}
			s.rescan(ctx)
		case <-ticker.C:
			s.rescan(ctx)
		}
	}
}
