package app

import (
	"context"
	"fmt"
	"log/slog"

	"ember/boot"
	"ember/catalog"
	"ember/config"
	"ember/device"
	"ember/lifecycle"
	"ember/network"
	"ember/registry"
	"ember/store"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Database   store.Database
	Registry   *registry.Store
	BootConfig *registry.BootConfigStore
	Profile    device.DeviceProfile
	Catalog    catalog.Catalog
	BackupRepo lifecycle.BackupRepository
	Lifecycle  lifecycle.Service
	Network    *network.Manager
	Events     boot.EventRepository
	Engine     *boot.Engine
	Logger     *slog.Logger
}

// NewContainer creates and wires up all dependencies. The device is
// profiled once here; the profile is immutable for the process lifetime.
func NewContainer(ctx context.Context, cfg *config.Config, selector boot.Selector, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := store.NewBoltDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	reg := registry.NewStore(cfg.Storage.RegistryFile, logger)
	bootCfg := registry.NewBootConfigStore(cfg.Storage.BootConfigFile, cfg.Boot.MenuTimeoutSeconds, logger)

	profile := device.NewProfiler(cfg.Device.Sysroot, logger).Profile(ctx)
	logger.Info("device profiled",
		"class", profile.Class,
		"model", profile.Model,
		"memory_mb", profile.MemoryMB,
		"cores", profile.CPU.Cores)

	cat := catalog.NewService(cfg, reg, logger)
	backupRepo := lifecycle.NewBackupRepository(database, cfg.DB.Bucket+"_backups")
	runner := lifecycle.NewExecRunner(logger)
	manager := lifecycle.NewManager(cfg, cat, reg, bootCfg, backupRepo, runner, profile, logger)

	netMgr := network.NewManager(cfg.Network.ProbeTimeout(), logger)
	events := boot.NewEventRepository(database, cfg.DB.Bucket+"_boot_events")
	engine := boot.NewEngine(cat, reg, bootCfg, manager, netMgr, selector, events, logger)

	return &Container{
		Config:     cfg,
		Database:   database,
		Registry:   reg,
		BootConfig: bootCfg,
		Profile:    profile,
		Catalog:    cat,
		BackupRepo: backupRepo,
		Lifecycle:  manager,
		Network:    netMgr,
		Events:     events,
		Engine:     engine,
		Logger:     logger,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.Database != nil {
		return c.Database.Close()
	}
	return nil
}
