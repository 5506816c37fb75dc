package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SystemHandlers handles OS catalog and lifecycle requests
type SystemHandlers struct {
	container *Container
}

// NewSystemHandlers creates a new SystemHandlers instance
func NewSystemHandlers(container *Container) *SystemHandlers {
	return &SystemHandlers{container: container}
}

type installRequest struct {
	Source string `json:"source"`
	Name   string `json:"name"`
}

type restoreRequest struct {
	BackupID string `json:"backup_id"`
}

type removeRequest struct {
	Backup bool `json:"backup"`
}

type updateRequest struct {
	Source string `json:"source"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
}

// ListSystems returns the ordered catalog snapshot.
func (h *SystemHandlers) ListSystems(w http.ResponseWriter, r *http.Request) {
	entries, err := h.container.Catalog.Scan(r.Context())
	if err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

// InstallSystem installs from a local path or URL.
func (h *SystemHandlers) InstallSystem(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	if err := RequireField("name", req.Name); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	if err := RequireField("source", req.Source); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	if err := h.container.Lifecycle.Install(r.Context(), req.Source, req.Name); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Success: true, Name: req.Name})
}

// BackupSystem archives an installed OS.
func (h *SystemHandlers) BackupSystem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	rec, err := h.container.Lifecycle.Backup(r.Context(), name)
	if err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// RestoreSystem restores an OS from one of its backups.
func (h *SystemHandlers) RestoreSystem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req restoreRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	if err := RequireField("backup_id", req.BackupID); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	if err := h.container.Lifecycle.RestoreByID(r.Context(), req.BackupID); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Success: true, Name: name})
}

// RemoveSystem deletes an installed OS, optionally backing it up first.
func (h *SystemHandlers) RemoveSystem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req removeRequest
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &req); err != nil {
			SendError(w, r, h.container.Logger, err)
			return
		}
	}

	if err := h.container.Lifecycle.Remove(r.Context(), name, req.Backup); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Success: true, Name: name})
}

// UpdateSystem reinstalls an OS from a new source with automatic rollback.
func (h *SystemHandlers) UpdateSystem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req updateRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	if err := RequireField("source", req.Source); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	if err := h.container.Lifecycle.Update(r.Context(), name, req.Source); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Success: true, Name: name})
}

// SetDefaultSystem marks an installed OS as the boot default.
func (h *SystemHandlers) SetDefaultSystem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.container.Lifecycle.SetDefault(r.Context(), name); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Success: true, Name: name})
}
