package boot

import (
	"time"

	"ember/catalog"
)

// State is the boot policy engine's current phase. Terminal is absorbing;
// once reached no further transition is valid in this process invocation.
type State string

const (
	StateAwaitingInput   State = "awaiting_input"
	StateAutoBooting     State = "auto_booting"
	StateInteractiveMenu State = "interactive_menu"
	StateRemoteFallback  State = "remote_fallback"
	StateNoSystems       State = "no_systems"
	StateTerminal        State = "terminal"
)

// AdminChoice is one of the fixed administrative menu entries.
type AdminChoice string

const (
	AdminNone            AdminChoice = ""
	AdminAdvancedOptions AdminChoice = "advanced_options"
	AdminRemoteInterface AdminChoice = "remote_interface"
	AdminRestartTests    AdminChoice = "restart_tests"
	AdminShutdown        AdminChoice = "shutdown"
)

// Selection is the outcome of one interactive menu round. Exactly one of
// OS and Admin is meaningful; a nil OS means an administrative choice.
type Selection struct {
	OS    *catalog.OSEntry
	Admin AdminChoice
}

// Event is one boot hand-off, appended to the history whether or not the
// dispatched sequence succeeded.
type Event struct {
	ID       string    `json:"id"`
	OSName   string    `json:"os_name"`
	Category string    `json:"category"`
	Trigger  string    `json:"trigger"` // "auto" or "menu"
	At       time.Time `json:"at"`
}
