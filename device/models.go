package device

// Class identifies the broad family of board or handheld the process is
// running on. Classification is a first-match probe, not a score.
type Class string

const (
	ClassRaspberryPi Class = "raspberrypi"
	ClassHandheld    Class = "handheld" // Anbernic-style gaming handhelds
	ClassOrangePi    Class = "orangepi"
	ClassBananaPi    Class = "bananapi"
	ClassRockPi      Class = "rockpi"
	ClassOdroid      Class = "odroid"
	ClassGeneric     Class = "generic"
)

// DisplayType enumerates the display interfaces the profiler recognizes.
type DisplayType string

const (
	DisplayHDMI    DisplayType = "hdmi"
	DisplayDSI     DisplayType = "dsi"
	DisplayLCD     DisplayType = "lcd"
	DisplayUnknown DisplayType = "unknown"
)

// CPUInfo summarizes the processor.
type CPUInfo struct {
	Model        string `json:"model"`
	Cores        int    `json:"cores"`
	FrequencyMHz int    `json:"frequency_mhz,omitempty"`
}

// Resolution is a native screen resolution in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GamingFeatures describes the built-in game controls of the device. It is
// a fixed lookup keyed by device class, not probed hardware state.
type GamingFeatures struct {
	HasDPad          bool        `json:"has_dpad"`
	HasAnalogSticks  bool        `json:"has_analog_sticks"`
	HasShoulderBtns  bool        `json:"has_shoulder_buttons"`
	HasBuiltInScreen bool        `json:"has_built_in_screen"`
	HasBattery       bool        `json:"has_battery"`
	ScreenSizeInches float64     `json:"screen_size_inches,omitempty"`
	NativeResolution *Resolution `json:"native_resolution,omitempty"`
}

// DeviceProfile is the immutable hardware snapshot built once at startup.
type DeviceProfile struct {
	Class        Class          `json:"class"`
	Model        string         `json:"model"`
	Architecture string         `json:"architecture"`
	MemoryMB     uint64         `json:"memory_mb"`
	CPU          CPUInfo        `json:"cpu"`
	HasGPIO      bool           `json:"has_gpio"`
	HasCamera    bool           `json:"has_camera"`
	Display      DisplayType    `json:"display"`
	Gaming       GamingFeatures `json:"gaming"`
}

// IsGamingHandheld reports whether the device is a dedicated handheld.
func (p DeviceProfile) IsGamingHandheld() bool {
	return p.Class == ClassHandheld
}

// gamingFeatureTable is the fixed per-class feature lookup.
var gamingFeatureTable = map[Class]GamingFeatures{
	ClassHandheld: {
		HasDPad:          true,
		HasAnalogSticks:  true,
		HasShoulderBtns:  true,
		HasBuiltInScreen: true,
		HasBattery:       true,
		ScreenSizeInches: 3.5,
		NativeResolution: &Resolution{Width: 480, Height: 320},
	},
	ClassRaspberryPi: {
		// External controllers only; nothing built in.
	},
}

// gamingFeaturesFor returns the feature set for a class, zero-valued for
// classes without an entry.
func gamingFeaturesFor(c Class) GamingFeatures {
	return gamingFeatureTable[c]
}
