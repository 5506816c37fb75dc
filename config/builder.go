package config

import "fmt"

// ConfigBuilder assembles a Config for callers that do not want the
// environment-derived defaults, primarily tests.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder starts from the defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Defaults}
}

func (b *ConfigBuilder) WithSystemsDir(dir string) *ConfigBuilder {
	b.cfg.Storage.SystemsDir = dir
	return b
}

func (b *ConfigBuilder) WithBackupDir(dir string) *ConfigBuilder {
	b.cfg.Storage.BackupDir = dir
	return b
}

func (b *ConfigBuilder) WithRegistryFile(path string) *ConfigBuilder {
	b.cfg.Storage.RegistryFile = path
	return b
}

func (b *ConfigBuilder) WithBootConfigFile(path string) *ConfigBuilder {
	b.cfg.Storage.BootConfigFile = path
	return b
}

func (b *ConfigBuilder) WithDBPath(path string) *ConfigBuilder {
	b.cfg.DB.DBPath = path
	return b
}

func (b *ConfigBuilder) WithDBFile(file string) *ConfigBuilder {
	b.cfg.DB.DBFile = file
	return b
}

func (b *ConfigBuilder) WithBucket(bucket string) *ConfigBuilder {
	b.cfg.DB.Bucket = bucket
	return b
}

func (b *ConfigBuilder) WithBootRoots(roots ...string) *ConfigBuilder {
	b.cfg.Scan.BootRoots = roots
	return b
}

func (b *ConfigBuilder) WithImageDirs(dirs ...string) *ConfigBuilder {
	b.cfg.Scan.ImageDirs = dirs
	return b
}

func (b *ConfigBuilder) WithMediaRoots(roots ...string) *ConfigBuilder {
	b.cfg.Scan.MediaRoots = roots
	return b
}

func (b *ConfigBuilder) WithMenuTimeout(seconds int) *ConfigBuilder {
	b.cfg.Boot.MenuTimeoutSeconds = seconds
	return b
}

func (b *ConfigBuilder) WithSysroot(root string) *ConfigBuilder {
	b.cfg.Device.Sysroot = root
	return b
}

// Build validates and returns the assembled configuration.
func (b *ConfigBuilder) Build() (*Config, error) {
	if b.cfg.Storage.SystemsDir == "" {
		return nil, fmt.Errorf("systems directory must not be empty")
	}
	if b.cfg.Storage.RegistryFile == "" {
		return nil, fmt.Errorf("registry file must not be empty")
	}
	cfg := b.cfg
	return &cfg, nil
}
