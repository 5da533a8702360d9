package blesvc

import "errors"

var (
	// ErrPlatformUnavailable means the system bus cannot be reached or
	// org.bluez is not on it. Fatal.
	ErrPlatformUnavailable = errors.New("bluez unavailable")

	// ErrAlreadyRegistered means another application already owns a HID
	// service on this adapter. Fatal.
	ErrAlreadyRegistered = errors.New("hid application already registered")

	// ErrNotSubscribed gates notifications until the central enables them.
	// Callers drop the report and carry on.
	ErrNotSubscribed = errors.New("central not subscribed")
)
