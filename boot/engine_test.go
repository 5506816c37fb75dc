package boot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/catalog"
	"ember/network"
	"ember/registry"
)

type fakeCatalog struct {
	mu      sync.Mutex
	entries []catalog.OSEntry
	err     error
}

func (f *fakeCatalog) Scan(context.Context) ([]catalog.OSEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

func (f *fakeCatalog) setEntries(entries []catalog.OSEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *fakeCatalog) Register(string, string, int64) error { return nil }
func (f *fakeCatalog) Unregister(string) error              { return nil }
func (f *fakeCatalog) FindDefault(context.Context, string) (*catalog.OSEntry, bool) {
	return nil, false
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []catalog.OSEntry
	onDispatch func(entry catalog.OSEntry)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, entry catalog.OSEntry) error {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, entry)
	hook := f.onDispatch
	f.mu.Unlock()
	if hook != nil {
		hook(entry)
	}
	return nil
}

func (f *fakeDispatcher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.dispatched {
		out = append(out, e.Name)
	}
	return out
}

type fakeConnector struct {
	conn network.Connection
	err  error
}

func (f *fakeConnector) Connect(context.Context) (network.Connection, error) {
	return f.conn, f.err
}

type fakeSelector struct {
	selectFn func(ctx context.Context, entries []catalog.OSEntry) (Selection, error)

	mu     sync.Mutex
	called int
}

func (f *fakeSelector) Select(ctx context.Context, entries []catalog.OSEntry) (Selection, error) {
	f.mu.Lock()
	f.called++
	f.mu.Unlock()
	if f.selectFn == nil {
		return Selection{Admin: AdminShutdown}, nil
	}
	return f.selectFn(ctx, entries)
}

func (f *fakeSelector) timesCalled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

type memEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memEvents) Append(_ context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memEvents) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Event(nil), m.events...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type harness struct {
	cat      *fakeCatalog
	reg      *registry.Store
	bootCfg  *registry.BootConfigStore
	disp     *fakeDispatcher
	net      *fakeConnector
	selector *fakeSelector
	events   *memEvents
	engine   *Engine
	done     chan struct{}
}

func newHarness(t *testing.T, timeoutSeconds int) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		cat:      &fakeCatalog{},
		reg:      registry.NewStore(filepath.Join(dir, "registry.json"), logger),
		bootCfg:  registry.NewBootConfigStore(filepath.Join(dir, "boot_config.json"), timeoutSeconds, logger),
		disp:     &fakeDispatcher{},
		net:      &fakeConnector{},
		selector: &fakeSelector{},
		events:   &memEvents{},
		done:     make(chan struct{}),
	}
	h.engine = NewEngine(h.cat, h.reg, h.bootCfg, h.disp, h.net, h.selector, h.events, logger)
	h.engine.rescan = 5 * time.Millisecond
	return h
}

func (h *harness) run(ctx context.Context) {
	go func() {
		h.engine.Run(ctx)
		close(h.done)
	}()
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not terminate")
	}
}

// requestMenu retries until the engine is listening.
func (h *harness) requestMenu(t *testing.T) {
	t.Helper()
	require.Eventually(t, h.engine.RequestMenu, 5*time.Second, time.Millisecond)
}

func entries(names ...string) []catalog.OSEntry {
	var out []catalog.OSEntry
	for _, n := range names {
		out = append(out, catalog.OSEntry{Name: n, Category: catalog.CategoryRetroPie, Bootable: true})
	}
	return out
}

func TestEmptyCatalogReachesNoSystems(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)

	require.Eventually(t, func() bool {
		return h.engine.State() == StateNoSystems
	}, 5*time.Second, time.Millisecond)

	assert.Empty(t, h.disp.names())
	cancel()
	h.waitDone(t)
	assert.Equal(t, StateTerminal, h.engine.State())
}

func TestTimeoutBootsConfiguredDefault(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("RetroPie", "Batocera"))
	require.NoError(t, h.bootCfg.SetDefaultOS("RetroPie"))
	require.NoError(t, h.reg.Put(registry.Record{Name: "RetroPie", Path: "/x", Bootable: true}))

	h.run(context.Background())
	h.waitDone(t)

	assert.Equal(t, []string{"RetroPie"}, h.disp.names())
	assert.Equal(t, StateTerminal, h.engine.State())

	// Last-used bookkeeping happens even though dispatch is unverified.
	rec, ok := h.reg.Get("RetroPie")
	require.True(t, ok)
	assert.NotNil(t, rec.LastUsed)

	evs, err := h.events.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "RetroPie", evs[0].OSName)
	assert.Equal(t, "auto", evs[0].Trigger)
}

func TestBookkeepingRecordedBeforeHandOff(t *testing.T) {
	// The dispatched boot sequence may replace the process and never
	// return; last-used and the boot event must already be persisted when
	// the hand-off starts.
	h := newHarness(t, 0)
	h.cat.setEntries(entries("RetroPie"))
	require.NoError(t, h.bootCfg.SetDefaultOS("RetroPie"))
	require.NoError(t, h.reg.Put(registry.Record{Name: "RetroPie", Path: "/x", Bootable: true}))

	var touchedAtDispatch, eventAtDispatch bool
	h.disp.onDispatch = func(entry catalog.OSEntry) {
		if rec, ok := h.reg.Get(entry.Name); ok {
			touchedAtDispatch = rec.LastUsed != nil
		}
		evs, err := h.events.Recent(context.Background(), 0)
		eventAtDispatch = err == nil && len(evs) == 1
	}

	h.run(context.Background())
	h.waitDone(t)

	require.Equal(t, []string{"RetroPie"}, h.disp.names())
	assert.True(t, touchedAtDispatch)
	assert.True(t, eventAtDispatch)
}

func TestAbsentDefaultFallsBackToMenu(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("Batocera"))
	require.NoError(t, h.bootCfg.SetDefaultOS("Foo"))

	h.run(context.Background())
	h.waitDone(t)

	// The shutdown selector means reaching the menu terminates the engine.
	assert.GreaterOrEqual(t, h.selector.timesCalled(), 1)
	assert.Empty(t, h.disp.names())
}

func TestNoDefaultHoldsInRemoteFallback(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("Batocera"))
	h.net.conn = network.Connection{Interface: "eth0", IPAddress: "192.168.1.10"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)

	require.Eventually(t, func() bool {
		return h.engine.State() == StateRemoteFallback
	}, 5*time.Second, time.Millisecond)
	assert.Empty(t, h.disp.names())

	// A menu request breaks the hold.
	h.requestMenu(t)
	h.waitDone(t)
	assert.GreaterOrEqual(t, h.selector.timesCalled(), 1)
}

func TestRemoteFallbackWithoutNetworkDegradesToMenu(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("Batocera"))
	h.net.err = errors.New("no usable interface")

	h.run(context.Background())
	h.waitDone(t)

	assert.GreaterOrEqual(t, h.selector.timesCalled(), 1)
	assert.Empty(t, h.disp.names())
}

func TestMenuRequestWinsRace(t *testing.T) {
	h := newHarness(t, 60)
	h.cat.setEntries(entries("RetroPie"))
	require.NoError(t, h.bootCfg.SetDefaultOS("RetroPie"))
	h.selector.selectFn = func(_ context.Context, entries []catalog.OSEntry) (Selection, error) {
		return Selection{OS: &entries[0]}, nil
	}

	h.run(context.Background())
	h.requestMenu(t)
	h.waitDone(t)

	// The menu's choice boots, not the auto-boot default path.
	assert.Equal(t, []string{"RetroPie"}, h.disp.names())
	evs, err := h.events.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "menu", evs[0].Trigger)
}

func TestAdminChoicesReturnToMenuExceptShutdown(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("Batocera"))
	require.NoError(t, h.bootCfg.SetDefaultOS("Foo"))
	h.net.conn = network.Connection{Interface: "wlan0", IPAddress: "10.0.0.5"}

	choices := []AdminChoice{AdminAdvancedOptions, AdminRemoteInterface, AdminRestartTests, AdminShutdown}
	var round int
	h.selector.selectFn = func(context.Context, []catalog.OSEntry) (Selection, error) {
		sel := Selection{Admin: choices[round]}
		round++
		return sel, nil
	}

	h.run(context.Background())
	h.waitDone(t)

	assert.Equal(t, len(choices), h.selector.timesCalled())
	assert.Empty(t, h.disp.names())
}

func TestLateMenuRequestDiscarded(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.setEntries(entries("RetroPie"))
	require.NoError(t, h.bootCfg.SetDefaultOS("RetroPie"))

	h.run(context.Background())
	h.waitDone(t)

	assert.False(t, h.engine.RequestMenu())
}

func TestNoSystemsRecoversWhenCatalogFills(t *testing.T) {
	h := newHarness(t, 0)

	h.run(context.Background())
	require.Eventually(t, func() bool {
		return h.engine.State() == StateNoSystems
	}, 5*time.Second, time.Millisecond)

	// An OS appears (e.g. media attached); the periodic rescan finds it
	// and the menu comes up.
	h.cat.setEntries(entries("Lakka"))
	h.waitDone(t)
	assert.GreaterOrEqual(t, h.selector.timesCalled(), 1)
}

func TestScanFailureTreatedAsEmpty(t *testing.T) {
	h := newHarness(t, 0)
	h.cat.err = errors.New("io error")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)

	require.Eventually(t, func() bool {
		return h.engine.State() == StateNoSystems
	}, 5*time.Second, time.Millisecond)
	cancel()
	h.waitDone(t)
}
