package lifecycle

import (
	"context"

	"ember/catalog"
)

// Runner executes an external tool and returns its stdout. A non-zero exit
// comes back as an ExternalToolFailure carrying the tool's stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// BackupRepository persists backup records.
type BackupRepository interface {
	Save(ctx context.Context, rec *BackupRecord) error
	Get(ctx context.Context, id string) (*BackupRecord, error)
	GetAll(ctx context.Context) ([]*BackupRecord, error)
	GetByOS(ctx context.Context, name string) ([]*BackupRecord, error)
	Delete(ctx context.Context, id string) error
}

// Service defines the OS lifecycle operations consumed by the boot policy
// engine and the management API.
type Service interface {
	// Install puts the payload from a local path or URL under the systems
	// root as name, replacing any existing install for that name.
	Install(ctx context.Context, source, name string) error

	// Backup archives the named install and returns the record.
	Backup(ctx context.Context, name string) (*BackupRecord, error)

	// Backups lists records whose archives still exist, newest first.
	Backups(ctx context.Context) ([]*BackupRecord, error)

	// BackupsFor lists the live records for one OS, newest first.
	BackupsFor(ctx context.Context, name string) ([]*BackupRecord, error)

	// Restore replaces the install directory from a backup archive and
	// re-registers the OS.
	Restore(ctx context.Context, rec *BackupRecord) error

	// RestoreByID restores from a stored record.
	RestoreByID(ctx context.Context, id string) error

	// Remove deletes an install, taking a backup first when requested. A
	// failing backup aborts the removal.
	Remove(ctx context.Context, name string, makeBackup bool) error

	// Update reinstalls name from source with an automatic pre-update
	// backup and rollback on failure.
	Update(ctx context.Context, name, source string) error

	// SetDefault marks an installed OS as the boot default.
	SetDefault(ctx context.Context, name string) error

	// Dispatch runs the category-specific boot sequence for an entry. The
	// handoff is fire-and-forget signaling, not a verified boot.
	Dispatch(ctx context.Context, entry catalog.OSEntry) error
}
