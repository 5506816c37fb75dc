package registry

import "time"

// Record is the persisted metadata for one installed OS. The registry is
// the source of truth for install history; presence on disk is decided by
// the catalog scan, not by this record.
type Record struct {
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	InstalledAt time.Time  `json:"install_date"`
	LastUsed    *time.Time `json:"last_used"`
	Bootable    bool       `json:"bootable"`
	SizeMB      int64      `json:"size_mb"`
}

// BootConfiguration is the persisted boot policy input. Mutated only by
// explicit set-default operations and persisted immediately after.
type BootConfiguration struct {
	DefaultOS        *string  `json:"default_os"`
	TimeoutSeconds   int      `json:"timeout_seconds"`
	AvailableSystems []string `json:"available_systems"`
	BootOrder        []string `json:"boot_order"`
	RecoveryMode     bool     `json:"recovery_mode"`
}

// DefaultBootConfiguration is substituted when no boot configuration file
// exists or it cannot be parsed.
func DefaultBootConfiguration(timeoutSeconds int) BootConfiguration {
	return BootConfiguration{
		TimeoutSeconds:   timeoutSeconds,
		AvailableSystems: []string{},
		BootOrder:        []string{},
	}
}
