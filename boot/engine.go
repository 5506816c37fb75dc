package boot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ember/catalog"
	"ember/network"
	"ember/registry"
)

// Dispatcher hands a chosen OS off to its boot sequence.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry catalog.OSEntry) error
}

// Connector probes for a usable network connection.
type Connector interface {
	Connect(ctx context.Context) (network.Connection, error)
}

// Selector presents the interactive menu and blocks until the user picks
// an OS or an administrative choice.
type Selector interface {
	Select(ctx context.Context, entries []catalog.OSEntry) (Selection, error)
}

// Engine drives the boot decision. It races the configured timeout against
// a menu request, auto-boots the default when one is usable and degrades
// to the interactive menu or the no-systems screen otherwise. Failures
// inside the engine never escape as process-fatal errors.
type Engine struct {
	cat      catalog.Catalog
	reg      *registry.Store
	bootCfg  *registry.BootConfigStore
	disp     Dispatcher
	net      Connector
	selector Selector
	events   EventRepository
	logger   *slog.Logger

	menuReq chan struct{}
	rescan  time.Duration

	mu      sync.Mutex
	state   State
	pending *catalog.OSEntry
	trigger string
}

// NewEngine creates the boot policy engine.
func NewEngine(
	cat catalog.Catalog,
	reg *registry.Store,
	bootCfg *registry.BootConfigStore,
	disp Dispatcher,
	net Connector,
	selector Selector,
	events EventRepository,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cat:      cat,
		reg:      reg,
		bootCfg:  bootCfg,
		disp:     disp,
		net:      net,
		selector: selector,
		events:   events,
		logger:   logger,
		menuReq:  make(chan struct{}),
		rescan:   10 * time.Second,
		state:    StateAwaitingInput,
	}
}

// State reports the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RequestMenu asks the engine to open the interactive menu. It reports
// whether the request was accepted; requests arriving while no state is
// listening (including after the input race has resolved) are discarded,
// never queued.
func (e *Engine) RequestMenu() bool {
	select {
	case e.menuReq <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run drives the state machine until Terminal or context cancellation.
func (e *Engine) Run(ctx context.Context) {
	state := StateAwaitingInput
	for state != StateTerminal {
		e.setState(state)
		if ctx.Err() != nil {
			state = StateTerminal
			continue
		}

		switch state {
		case StateAwaitingInput:
			state = e.awaitInput(ctx)
		case StateAutoBooting:
			state = e.autoBoot(ctx)
		case StateInteractiveMenu:
			state = e.interactiveMenu(ctx)
		case StateRemoteFallback:
			state = e.remoteFallback(ctx)
		case StateNoSystems:
			state = e.noSystems(ctx)
		default:
			e.logger.Error("unknown engine state", "state", state)
			state = StateTerminal
		}
	}
	e.setState(StateTerminal)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	if e.state != s {
		e.logger.Info("boot state", "from", e.state, "to", s)
		e.state = s
	}
	e.mu.Unlock()
}

func (e *Engine) setPending(entry catalog.OSEntry, trigger string) {
	e.mu.Lock()
	e.pending = &entry
	e.trigger = trigger
	e.mu.Unlock()
}

// awaitInput races the menu request against the configured timeout. The
// first to resolve wins; the loser is discarded.
func (e *Engine) awaitInput(ctx context.Context) State {
	timeout := time.Duration(e.bootCfg.Load().TimeoutSeconds) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return StateTerminal
	case <-e.menuReq:
		return StateInteractiveMenu
	case <-timer.C:
	}

	entries := e.snapshot(ctx)
	if len(entries) == 0 {
		return StateNoSystems
	}

	cfg := e.bootCfg.Load()
	if cfg.DefaultOS == nil {
		return StateRemoteFallback
	}

	for i := range entries {
		if entries[i].Name == *cfg.DefaultOS {
			e.setPending(entries[i], "auto")
			return StateAutoBooting
		}
	}

	e.logger.Warn("configured default not in catalog", "default", *cfg.DefaultOS)
	return StateInteractiveMenu
}

// autoBoot dispatches the pending entry. The hand-off is fire and forget
// and may never return control, so last-used bookkeeping and the boot
// event are recorded before it, not after; they must not be contingent on
// unobservable external success.
func (e *Engine) autoBoot(ctx context.Context) State {
	e.mu.Lock()
	entry := e.pending
	trigger := e.trigger
	e.mu.Unlock()
	if entry == nil {
		e.logger.Error("auto boot without a pending entry")
		return StateInteractiveMenu
	}

	if err := e.reg.Touch(entry.Name, time.Now().UTC()); err != nil {
		e.logger.Warn("could not record last-used", "name", entry.Name, "error", err)
	}
	if err := e.events.Append(ctx, &Event{
		OSName:   entry.Name,
		Category: string(entry.Category),
		Trigger:  trigger,
	}); err != nil {
		e.logger.Warn("could not append boot event", "name", entry.Name, "error", err)
	}

	if err := e.disp.Dispatch(ctx, *entry); err != nil {
		e.logger.Warn("boot dispatch failed", "name", entry.Name, "error", err)
	}

	return StateTerminal
}

func (e *Engine) interactiveMenu(ctx context.Context) State {
	entries := e.snapshot(ctx)
	if len(entries) == 0 {
		return StateNoSystems
	}

	sel, err := e.selector.Select(ctx, entries)
	if err != nil {
		if ctx.Err() != nil {
			return StateTerminal
		}
		e.logger.Warn("menu selection failed", "error", err)
		return StateInteractiveMenu
	}

	if sel.OS != nil {
		e.setPending(*sel.OS, "menu")
		return StateAutoBooting
	}

	switch sel.Admin {
	case AdminShutdown:
		return StateTerminal
	case AdminRemoteInterface:
		if conn, err := e.net.Connect(ctx); err == nil {
			e.logger.Info("remote interface reachable", "interface", conn.Interface, "ip", conn.IPAddress)
		} else {
			e.logger.Warn("no network for remote interface", "error", err)
		}
	case AdminRestartTests:
		e.logger.Info("rescanning catalog", "entries", len(e.snapshot(ctx)))
	case AdminAdvancedOptions:
		e.logger.Info("advanced options", "boot_config", e.bootCfg.Load())
	}
	return StateInteractiveMenu
}

// remoteFallback probes the network. With a connection it holds, serving
// the remote surface, until a menu request or shutdown; without one it
// degrades to the interactive menu.
func (e *Engine) remoteFallback(ctx context.Context) State {
	conn, err := e.net.Connect(ctx)
	if err != nil {
		e.logger.Warn("remote fallback has no network", "error", err)
		return StateInteractiveMenu
	}

	e.logger.Info("holding for remote management", "interface", conn.Interface, "ip", conn.IPAddress)
	select {
	case <-ctx.Done():
		return StateTerminal
	case <-e.menuReq:
		return StateInteractiveMenu
	}
}

// noSystems is the informational screen shown when the catalog is empty.
// It rescans periodically and on menu request; finding anything moves to
// the interactive menu.
func (e *Engine) noSystems(ctx context.Context) State {
	e.logger.Info("no operating systems found; install one via the remote interface or attach media")

	ticker := time.NewTicker(e.rescan)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return StateTerminal
		case <-e.menuReq:
		case <-ticker.C:
		}
		if len(e.snapshot(ctx)) > 0 {
			return StateInteractiveMenu
		}
	}
}

// snapshot scans the catalog, treating failure as an empty view.
func (e *Engine) snapshot(ctx context.Context) []catalog.OSEntry {
	entries, err := e.cat.Scan(ctx)
	if err != nil {
		e.logger.Warn("catalog scan failed", "error", err)
		return nil
	}
	return entries
}
