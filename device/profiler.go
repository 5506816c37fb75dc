package device

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Profiler inspects the host and builds a DeviceProfile. All probe paths
// are resolved under sysroot so tests can point it at a fixture tree.
type Profiler struct {
	sysroot string
	logger  *slog.Logger
}

// NewProfiler creates a profiler rooted at sysroot ("/" on a real device).
func NewProfiler(sysroot string, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	if sysroot == "" {
		sysroot = "/"
	}
	return &Profiler{sysroot: sysroot, logger: logger}
}

// classProbe matches one identity source against a device class. Probes run
// in order; the first positive match wins.
type classProbe struct {
	class     Class
	modelSubs []string // substrings matched against the device-tree model
	dirs      []string // marker directories, any one is a match
}

var classProbes = []classProbe{
	{
		class:     ClassHandheld,
		modelSubs: []string{"rg351", "rg552", "rg35xx", "anbernic"},
		dirs:      []string{"/opt/anbernic", "/boot/anbernic"},
	},
	{class: ClassRaspberryPi, modelSubs: []string{"raspberry pi"}},
	{class: ClassOrangePi, modelSubs: []string{"orange pi"}},
	{class: ClassBananaPi, modelSubs: []string{"banana pi"}},
	{class: ClassRockPi, modelSubs: []string{"rock pi"}},
	{class: ClassOdroid, modelSubs: []string{"odroid"}},
}

// Profile builds the device profile. It never fails; every probe degrades
// to a generic default.
func (p *Profiler) Profile(ctx context.Context) DeviceProfile {
	model := p.deviceTreeModel()
	class := p.detectClass(model)

	profile := DeviceProfile{
		Class:        class,
		Model:        p.modelName(class),
		Architecture: runtime.GOARCH,
		MemoryMB:     p.memoryMB(ctx),
		CPU:          p.cpuInfo(ctx),
		HasGPIO:      p.hasGPIO(),
		HasCamera:    p.hasCamera(),
		Display:      p.displayType(class),
		Gaming:       gamingFeaturesFor(class),
	}

	p.logger.Info("device profile built",
		"class", profile.Class,
		"model", profile.Model,
		"arch", profile.Architecture,
		"memory_mb", profile.MemoryMB)

	return profile
}

func (p *Profiler) path(rel string) string {
	return filepath.Join(p.sysroot, rel)
}

func (p *Profiler) exists(rel string) bool {
	_, err := os.Stat(p.path(rel))
	return err == nil
}

func (p *Profiler) readFile(rel string) string {
	data, err := os.ReadFile(p.path(rel))
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\x00\n")
}

// deviceTreeModel returns the lowercased device-tree model, falling back to
// /proc/cpuinfo hardware lines.
func (p *Profiler) deviceTreeModel() string {
	if model := p.readFile("proc/device-tree/model"); model != "" {
		return strings.ToLower(model)
	}
	return strings.ToLower(p.readFile("proc/cpuinfo"))
}

func (p *Profiler) detectClass(model string) Class {
	for _, probe := range classProbes {
		for _, sub := range probe.modelSubs {
			if sub != "" && strings.Contains(model, sub) {
				return probe.class
			}
		}
		for _, dir := range probe.dirs {
			if p.exists(strings.TrimPrefix(dir, "/")) {
				return probe.class
			}
		}
	}
	return ClassGeneric
}

func (p *Profiler) modelName(class Class) string {
	if raw := p.readFile("proc/device-tree/model"); raw != "" {
		return raw
	}
	switch class {
	case ClassHandheld:
		return "Gaming Handheld"
	case ClassGeneric:
		return "Generic ARM Device"
	default:
		return string(class) + " device"
	}
}

func (p *Profiler) memoryMB(ctx context.Context) uint64 {
	if p.sysroot == "/" {
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			return vm.Total / 1024 / 1024
		}
	}
	if kb := p.meminfoTotalKB(); kb > 0 {
		return kb / 1024
	}
	return 1024 // conservative default when nothing is readable
}

func (p *Profiler) meminfoTotalKB() uint64 {
	for _, line := range strings.Split(p.readFile("proc/meminfo"), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				return kb
			}
		}
	}
	return 0
}

func (p *Profiler) cpuInfo(ctx context.Context) CPUInfo {
	info := CPUInfo{Model: "unknown", Cores: 1}

	if p.sysroot == "/" {
		if counts, err := cpu.CountsWithContext(ctx, true); err == nil && counts > 0 {
			info.Cores = counts
		}
		if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
			if infos[0].ModelName != "" {
				info.Model = infos[0].ModelName
			}
			if infos[0].Mhz > 0 {
				info.FrequencyMHz = int(infos[0].Mhz)
			}
			return info
		}
	}

	// Fixture or degraded path: parse cpuinfo directly.
	cores := 0
	for _, line := range strings.Split(p.readFile("proc/cpuinfo"), "\n") {
		switch {
		case strings.HasPrefix(line, "processor"):
			cores++
		case strings.HasPrefix(line, "model name"), strings.HasPrefix(line, "Model"):
			if _, value, ok := strings.Cut(line, ":"); ok {
				info.Model = strings.TrimSpace(value)
			}
		case strings.HasPrefix(line, "cpu MHz"):
			if _, value, ok := strings.Cut(line, ":"); ok {
				if mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
					info.FrequencyMHz = int(mhz)
				}
			}
		}
	}
	if cores > 0 {
		info.Cores = cores
	}
	return info
}

// hasGPIO is a filesystem-existence check, deliberately independent of the
// class match.
func (p *Profiler) hasGPIO() bool {
	return p.exists("dev/gpiochip0") || p.exists("sys/class/gpio")
}

func (p *Profiler) hasCamera() bool {
	return p.exists("dev/video0") ||
		p.exists("proc/device-tree/soc/i2c@7e804000/imx219@10") ||
		p.exists("proc/device-tree/soc/csi1")
}

func (p *Profiler) displayType(class Class) DisplayType {
	switch class {
	case ClassHandheld:
		return DisplayLCD
	case ClassRaspberryPi:
		if p.exists("proc/device-tree/soc/dsi@7e209000") {
			return DisplayDSI
		}
		return DisplayHDMI
	default:
		if p.exists("sys/class/drm/card0-HDMI-A-1") {
			return DisplayHDMI
		}
		if p.exists("sys/class/drm/card0-DSI-1") {
			return DisplayDSI
		}
		return DisplayUnknown
	}
}
