package lifecycle

import "time"

// BackupRecord describes one backup archive. Records are immutable once
// created; the bootable flag is carried forward from the OS entry at backup
// time and not re-verified.
type BackupRecord struct {
	ID          string    `json:"id"`
	OSName      string    `json:"os_name"`
	CreatedAt   time.Time `json:"created_at"`
	SizeMB      int64     `json:"size_mb"`
	ArchivePath string    `json:"archive_path"`
	Bootable    bool      `json:"bootable"`
}

// containerType is the install-source container classification.
type containerType int

const (
	containerISO containerType = iota
	containerIMG
	containerTar
	containerZip
)

// installMetadata is written into every install directory as ember.json.
type installMetadata struct {
	Name        string    `json:"name"`
	InstalledAt time.Time `json:"install_date"`
	Bootable    bool      `json:"bootable"`
	DeviceClass string    `json:"device_class"`
	Source      string    `json:"source"`
}
