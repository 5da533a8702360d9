package bridge

// Config points the bridge at its data directory and the user-driven
// settings file. Only the settings file is live-reloaded.
type Config struct {
	DataDir  string `json:"dataDir"`
	Settings string `json:"settings"`
}

// Settings is the user-driven configuration stored at settings.yml.
// FocusTarget, Hotkey and ScrollStep apply on save; DeviceName, Adapter and
// Grab apply at the next start.
type Settings struct {
	DeviceName  string `json:"deviceName"`
	Adapter     string `json:"adapter"`
	FocusTarget string `json:"focusTarget"`
	Hotkey      string `json:"hotkey"`
	Grab        bool   `json:"grab"`
	ScrollStep  int    `json:"scrollStep"`
}

func defaultSettings() Settings {
	return Settings{
		DeviceName: "iPad Remote",
		Hotkey:     "ctrl+alt+q",
		ScrollStep: 3,
	}
}
