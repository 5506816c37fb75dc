package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	DB      DBConfig      `yaml:"db"`
	Scan    ScanConfig    `yaml:"scan"`
	Boot    BootConfig    `yaml:"boot"`
	Device  DeviceConfig  `yaml:"device"`
	Network NetworkConfig `yaml:"network"`
	HTTP    HTTPConfig    `yaml:"http"`
}

type StorageConfig struct {
	SystemsDir     string `yaml:"systems_dir"`      // One subdirectory per installed OS
	BackupDir      string `yaml:"backup_dir"`       // Flat directory of backup archives
	RegistryFile   string `yaml:"registry_file"`    // JSON registry of installed systems
	BootConfigFile string `yaml:"boot_config_file"` // JSON boot configuration
}

type DBConfig struct {
	DBPath string `yaml:"db_path"` // Path to store db file
	DBFile string `yaml:"db_file"` // Name of database file
	Bucket string `yaml:"bucket"`  // Base bucket name
}

type ScanConfig struct {
	BootRoots  []string `yaml:"boot_roots"`  // Boot partitions to identify in place
	ImageDirs  []string `yaml:"image_dirs"`  // Directories holding standalone OS images
	MediaRoots []string `yaml:"media_roots"` // Removable media mount points
}

type BootConfig struct {
	MenuTimeoutSeconds int `yaml:"menu_timeout_seconds"` // Input window before auto-boot
}

type DeviceConfig struct {
	Sysroot string `yaml:"sysroot"` // Root for hardware probe paths, "/" on a real device
}

type NetworkConfig struct {
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds"` // Remote fallback connect window
}

// ProbeTimeout returns the probe window as a duration.
func (n NetworkConfig) ProbeTimeout() time.Duration {
	return time.Duration(n.ProbeTimeoutSeconds) * time.Second
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Defaults holds the default configuration values which can be overridden
// by environment variables.
var Defaults = Config{
	Storage: StorageConfig{
		SystemsDir:     getEnv("EMBER_SYSTEMS_DIR", "/boot/ember/systems"),
		BackupDir:      getEnv("EMBER_BACKUP_DIR", "/boot/ember/backups"),
		RegistryFile:   getEnv("EMBER_REGISTRY_FILE", "/boot/ember/registry.json"),
		BootConfigFile: getEnv("EMBER_BOOT_CONFIG", "/boot/ember/boot_config.json"),
	},
	DB: DBConfig{
		DBPath: getEnv("EMBER_DB_PATH", "/boot/ember"),
		DBFile: getEnv("EMBER_DB_FILE", "ember.db"),
		Bucket: getEnv("EMBER_DB_BUCKET", "ember"),
	},
	Scan: ScanConfig{
		BootRoots:  getEnvList("EMBER_BOOT_ROOTS", "/boot,/mnt/boot,/media/boot"),
		ImageDirs:  getEnvList("EMBER_IMAGE_DIRS", "/boot/os_images,/opt/ember/images"),
		MediaRoots: getEnvList("EMBER_MEDIA_ROOTS", "/media,/run/media"),
	},
	Boot: BootConfig{
		MenuTimeoutSeconds: getEnvInt("EMBER_MENU_TIMEOUT", 10),
	},
	Device: DeviceConfig{
		Sysroot: getEnv("EMBER_SYSROOT", "/"),
	},
	Network: NetworkConfig{
		ProbeTimeoutSeconds: getEnvInt("EMBER_NET_TIMEOUT", 3),
	},
	HTTP: HTTPConfig{
		Host: getEnv("EMBER_HTTP_HOST", "0.0.0.0"),
		Port: getEnv("EMBER_HTTP_PORT", "8080"),
	},
}

// LoadDefault returns a copy of the environment-derived defaults.
func LoadDefault() (*Config, error) {
	cfg := Defaults
	return &cfg, nil
}

// Load returns the defaults overlaid with values from a YAML file. A missing
// file is not an error; the caller gets the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// getEnv returns the value of the environment variable key if it exists,
// otherwise it returns the fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns the integer value of the environment variable key if it
// exists and parses, otherwise the fallback value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvList splits a comma-separated environment variable into a list.
func getEnvList(key, fallback string) []string {
	value := getEnv(key, fallback)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
