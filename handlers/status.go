package handlers

import (
	"net/http"
	"time"

	"ember/boot"
	"ember/device"
)

// StatusHandlers handles status requests
type StatusHandlers struct {
	container *Container
}

// NewStatusHandlers creates a new StatusHandlers instance
func NewStatusHandlers(container *Container) *StatusHandlers {
	return &StatusHandlers{container: container}
}

// NetworkStatus summarizes connectivity at check time.
type NetworkStatus struct {
	Connected bool   `json:"connected"`
	Interface string `json:"interface,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SystemStatus is the full status snapshot for the remote interface.
type SystemStatus struct {
	Device      device.DeviceProfile `json:"device"`
	BootState   boot.State           `json:"boot_state"`
	Network     NetworkStatus        `json:"network"`
	RecentBoots []boot.Event         `json:"recent_boots"`
	CheckedAt   time.Time            `json:"checked_at"`
}

// GetStatus returns the device profile, engine state, connectivity and
// recent boot history.
func (h *StatusHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		Device:    h.container.Profile,
		BootState: h.container.Engine.State(),
		CheckedAt: time.Now().UTC(),
	}

	if conn, err := h.container.Network.Connect(r.Context()); err != nil {
		status.Network = NetworkStatus{Error: err.Error()}
	} else {
		status.Network = NetworkStatus{
			Connected: true,
			Interface: conn.Interface,
			IPAddress: conn.IPAddress,
		}
	}

	if events, err := h.container.Events.Recent(r.Context(), 10); err != nil {
		h.container.Logger.Warn("could not load boot history", "error", err)
	} else {
		status.RecentBoots = events
	}

	WriteJSON(w, http.StatusOK, status)
}
