package handlers

import (
	"errors"
	"net/http"
	"time"

	"ember/boot"
	"ember/emberr"
)

// BootHandlers handles boot signal requests
type BootHandlers struct {
	container *Container
}

// NewBootHandlers creates a new BootHandlers instance
func NewBootHandlers(container *Container) *BootHandlers {
	return &BootHandlers{container: container}
}

type bootRequest struct {
	Action string `json:"action"` // "menu" or "boot"
	Name   string `json:"name,omitempty"`
}

type bootResponse struct {
	Success  bool       `json:"success"`
	Accepted bool       `json:"accepted,omitempty"`
	State    boot.State `json:"state"`
}

// Signal delivers a boot signal to the engine. "menu" asks the engine to
// open the interactive menu; whether it is accepted depends on the engine
// listening, late requests are discarded. "boot" dispatches a named OS
// immediately, independent of the engine's race.
func (h *BootHandlers) Signal(w http.ResponseWriter, r *http.Request) {
	var req bootRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	switch req.Action {
	case "menu":
		accepted := h.container.Engine.RequestMenu()
		WriteJSON(w, http.StatusOK, bootResponse{
			Success:  true,
			Accepted: accepted,
			State:    h.container.Engine.State(),
		})
	case "boot":
		h.bootByName(w, r, req.Name)
	default:
		SendError(w, r, h.container.Logger,
			emberr.NewValidationFailure("handlers.boot", errors.New("action must be menu or boot")))
	}
}

func (h *BootHandlers) bootByName(w http.ResponseWriter, r *http.Request, name string) {
	if err := RequireField("name", name); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	entry, ok := h.container.Catalog.FindDefault(r.Context(), name)
	if !ok {
		SendError(w, r, h.container.Logger, emberr.NewNotFound("handlers.boot", name))
		return
	}

	// The hand-off may never return control; record the bookkeeping first.
	if err := h.container.Registry.Touch(entry.Name, time.Now().UTC()); err != nil {
		h.container.Logger.Warn("could not record last-used", "name", entry.Name, "error", err)
	}
	if err := h.container.Events.Append(r.Context(), &boot.Event{
		OSName:   entry.Name,
		Category: string(entry.Category),
		Trigger:  "remote",
	}); err != nil {
		h.container.Logger.Warn("could not append boot event", "name", entry.Name, "error", err)
	}

	if err := h.container.Lifecycle.Dispatch(r.Context(), *entry); err != nil {
		SendError(w, r, h.container.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, bootResponse{
		Success: true,
		State:   h.container.Engine.State(),
	})
}
