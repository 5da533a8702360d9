package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// activeWindowTitle reports the title of the currently focused window.
// X11 only: xdotool is preferred, xprop is the fallback. Wayland
// compositors do not expose foreign window focus.
func activeWindowTitle() (string, error) {
	switch detectDisplayServer() {
	case "x11":
		if title, err := activeWindowXdotool(); err == nil {
			return title, nil
		}
		return activeWindowXprop()
	case "wayland":
		return "", errors.New("focus detection is not supported on Wayland")
	default:
		return "", errors.New("no display server detected")
	}
}

func detectDisplayServer() string {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if os.Getenv("DISPLAY") != "" {
			return "x11" // XWayland
		}
		return "wayland"
	}
	if os.Getenv("DISPLAY") != "" {
		return "x11"
	}
	return "unknown"
}

func activeWindowXdotool() (string, error) {
	out, err := exec.Command("xdotool", "getactivewindow", "getwindowname").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func activeWindowXprop() (string, error) {
	out, err := exec.Command("xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", errors.New("failed to parse _NET_ACTIVE_WINDOW")
	}
	windowID := fields[len(fields)-1]

	out, err = exec.Command("xprop", "-id", windowID, "WM_NAME").Output()
	if err != nil {
		return "", err
	}
	return parseWMName(string(out))
}

// parseWMName extracts the quoted title from `WM_NAME(STRING) = "..."`.
func parseWMName(s string) (string, error) {
	start := strings.Index(s, "= \"")
	end := strings.LastIndex(s, "\"")
	if start == -1 || end < start+3 {
		return "", fmt.Errorf("failed to parse WM_NAME: %q", strings.TrimSpace(s))
	}
	return s[start+3 : end], nil
}
