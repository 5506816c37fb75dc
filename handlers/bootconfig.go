package handlers

import (
	"net/http"

	"ember/registry"
)

// BootConfigHandlers handles boot configuration requests
type BootConfigHandlers struct {
	container *Container
}

// NewBootConfigHandlers creates a new BootConfigHandlers instance
func NewBootConfigHandlers(container *Container) *BootConfigHandlers {
	return &BootConfigHandlers{container: container}
}

// GetBootConfig returns the persisted boot configuration.
func (h *BootConfigHandlers) GetBootConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.container.BootCfg.Load())
}

// PutBootConfig replaces the boot configuration. The timeout must be
// positive; a zero or negative value would auto-boot before any input.
func (h *BootConfigHandlers) PutBootConfig(w http.ResponseWriter, r *http.Request) {
	var cfg registry.BootConfiguration
	if err := DecodeJSON(r, &cfg); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = h.container.Config.Boot.MenuTimeoutSeconds
	}

	if err := h.container.BootCfg.Save(cfg); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}
