package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ember/device"
)

// optimizeFunc applies device-class tuning to a freshly extracted install
// directory. Adding a class is a table edit, not a new branch in install.
type optimizeFunc func(profile device.DeviceProfile, installDir string, logger *slog.Logger) error

var optimizations = map[device.Class]optimizeFunc{
	device.ClassRaspberryPi: optimizeRaspberryPi,
	device.ClassHandheld:    optimizeHandheld,
}

// applyOptimizations runs the optimization handler for the profile's class,
// if one exists. Classes without a handler install as-is.
func applyOptimizations(profile device.DeviceProfile, installDir string, logger *slog.Logger) error {
	fn, ok := optimizations[profile.Class]
	if !ok {
		return nil
	}
	return fn(profile, installDir, logger)
}

// optimizeRaspberryPi appends a GPU memory split to the firmware config
// when the install ships a config.txt without one. Installs without a
// config.txt are left untouched.
func optimizeRaspberryPi(_ device.DeviceProfile, installDir string, logger *slog.Logger) error {
	configPath := filepath.Join(installDir, "config.txt")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", configPath, err)
	}

	if strings.Contains(string(data), "gpu_mem") {
		return nil
	}

	logger.Info("applying gpu memory split", "path", configPath)
	tuned := string(data) + "\ngpu_mem=128\ngpu_freq=500\nover_voltage=2\n"
	if err := os.WriteFile(configPath, []byte(tuned), 0o644); err != nil {
		return fmt.Errorf("update %s: %w", configPath, err)
	}
	return nil
}

// optimizeHandheld writes a display configuration matched to the built-in
// screen so the installed OS does not come up at a desktop resolution.
func optimizeHandheld(profile device.DeviceProfile, installDir string, logger *slog.Logger) error {
	width, height := 480, 320
	if res := profile.Gaming.NativeResolution; res != nil {
		width, height = res.Width, res.Height
	}

	settings := fmt.Sprintf(`hdmi_force_hotplug=1
hdmi_group=2
hdmi_mode=87
hdmi_cvt=%d %d 60 6 0 0 0
display_rotate=0
`, width, height)

	displayPath := filepath.Join(installDir, "display_config.txt")
	logger.Info("writing handheld display config", "path", displayPath, "width", width, "height", height)
	if err := os.WriteFile(displayPath, []byte(settings), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", displayPath, err)
	}
	return nil
}
