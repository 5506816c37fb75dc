package handlers

import (
	"net/http"

	"ember/lifecycle"
)

// BackupHandlers handles backup listing requests
type BackupHandlers struct {
	container *Container
}

// NewBackupHandlers creates a new BackupHandlers instance
func NewBackupHandlers(container *Container) *BackupHandlers {
	return &BackupHandlers{container: container}
}

// ListBackups returns backup records whose archives still exist, newest
// first. An os query parameter narrows the list to one system.
func (h *BackupHandlers) ListBackups(w http.ResponseWriter, r *http.Request) {
	var (
		records []*lifecycle.BackupRecord
		err     error
	)
	if name := r.URL.Query().Get("os"); name != "" {
		records, err = h.container.Lifecycle.BackupsFor(r.Context(), name)
	} else {
		records, err = h.container.Lifecycle.Backups(r.Context())
	}
	if err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, records)
}
