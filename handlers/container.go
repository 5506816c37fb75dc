package handlers

import (
	"log/slog"

	"ember/boot"
	"ember/catalog"
	"ember/config"
	"ember/device"
	"ember/lifecycle"
	"ember/registry"
)

// BootSignaler is the engine surface the API needs: current state and the
// menu request signal.
type BootSignaler interface {
	State() boot.State
	RequestMenu() bool
}

// Container holds dependencies for handlers
type Container struct {
	Catalog   catalog.Catalog
	Lifecycle lifecycle.Service
	Registry  *registry.Store
	BootCfg   *registry.BootConfigStore
	Engine    BootSignaler
	Network   boot.Connector
	Events    boot.EventRepository
	Profile   device.DeviceProfile
	Config    *config.Config
	Logger    *slog.Logger
}
