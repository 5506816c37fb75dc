package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Connection describes the interface the remote management surface is
// reachable on.
type Connection struct {
	Interface string `json:"interface"`
	IPAddress string `json:"ip_address"`
}

// interfaceLister abstracts net.Interfaces for tests.
type interfaceLister func() ([]net.Interface, error)

// Manager probes host connectivity for the remote-management fallback.
type Manager struct {
	timeout time.Duration
	list    interfaceLister
	logger  *slog.Logger
}

// NewManager creates a connectivity prober with the given probe window.
func NewManager(timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{timeout: timeout, list: net.Interfaces, logger: logger}
}

// Connect looks for a usable non-loopback interface within the configured
// timeout. It does not bring links up; network configuration belongs to the
// host, this only answers "is the web surface reachable".
func (m *Manager) Connect(ctx context.Context) (Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	probe := func() (Connection, bool) {
		ifaces, err := m.list()
		if err != nil {
			return Connection{}, false
		}
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipNet, ok := addr.(*net.IPNet)
				if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
					continue
				}
				return Connection{Interface: iface.Name, IPAddress: ipNet.IP.String()}, true
			}
		}
		return Connection{}, false
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if conn, ok := probe(); ok {
			m.logger.Info("network connected", "interface", conn.Interface, "ip", conn.IPAddress)
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return Connection{}, fmt.Errorf("no usable network interface within %s: %w", m.timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
