package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/config"
	"ember/registry"
)

type fixture struct {
	svc        *Service
	reg        *registry.Store
	systemsDir string
	imageDir   string
	bootRoot   string
	mediaRoot  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	systemsDir := filepath.Join(base, "systems")
	imageDir := filepath.Join(base, "images")
	bootRoot := filepath.Join(base, "boot")
	mediaRoot := filepath.Join(base, "media")
	for _, d := range []string{systemsDir, imageDir, bootRoot, mediaRoot} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}

	cfg, err := config.NewConfigBuilder().
		WithSystemsDir(systemsDir).
		WithBackupDir(filepath.Join(base, "backups")).
		WithRegistryFile(filepath.Join(base, "registry.json")).
		WithBootRoots(bootRoot).
		WithImageDirs(imageDir).
		WithMediaRoots(mediaRoot).
		Build()
	require.NoError(t, err)

	reg := registry.NewStore(cfg.Storage.RegistryFile, nil)
	return &fixture{
		svc:        NewService(cfg, reg, nil),
		reg:        reg,
		systemsDir: systemsDir,
		imageDir:   imageDir,
		bootRoot:   bootRoot,
		mediaRoot:  mediaRoot,
	}
}

// installDir creates a payload directory with the given marker entries.
func installDir(t *testing.T, parent, name string, markers ...string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, m := range markers {
		path := filepath.Join(dir, m)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
	return dir
}

func names(entries []OSEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestScanClassifiesSystemsDir(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.systemsDir, "retro", "retropie", "boot.sh")
	installDir(t, f.systemsDir, "pios", "config.txt", "cmdline.txt")
	installDir(t, f.systemsDir, "mystery")

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byName := map[string]OSEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, CategoryRetroPie, byName["retro"].Category)
	assert.True(t, byName["retro"].Bootable)
	assert.Equal(t, CategoryStockOS, byName["pios"].Category)
	assert.Equal(t, CategoryUnknown, byName["mystery"].Category)
	assert.False(t, byName["mystery"].Bootable)
}

func TestScanSignatureBeatsFilename(t *testing.T) {
	f := newFixture(t)
	// Directory named after Batocera but carrying a RetroPie signature:
	// the signature wins.
	installDir(t, f.systemsDir, "batocera-build", "retropie")

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryRetroPie, entries[0].Category)
}

func TestScanCategoryPrecedenceOrder(t *testing.T) {
	f := newFixture(t)
	// Both a RetroPie and a Batocera signature present: the earlier
	// category in the rule order wins and is never overridden.
	installDir(t, f.systemsDir, "both", "retropie", "batocera")

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryRetroPie, entries[0].Category)
}

func TestScanImageFiles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.imageDir, "batocera-rpi4.img"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.imageDir, "strange.iso"), []byte("iso"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.imageDir, "notes.txt"), []byte("skip"), 0644))

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]OSEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, CategoryBatocera, byName["batocera-rpi4.img"].Category)
	assert.Equal(t, CategoryUnknown, byName["strange.iso"].Category)
}

func TestScanBootAndMediaRoots(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.bootRoot, ".", "config.txt", "cmdline.txt")
	installDir(t, f.mediaRoot, "usb0", "recalbox")
	installDir(t, f.mediaRoot, "usb1") // no signature: not an OS

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Raspberry Pi OS", "Recalbox"}, names(entries))
}

func TestScanIdempotent(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.systemsDir, "alpha", "retropie")
	installDir(t, f.systemsDir, "beta", "batocera")
	require.NoError(t, os.WriteFile(filepath.Join(f.imageDir, "recalbox.img"), []byte("x"), 0644))

	first, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	second, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScanOrdering(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.systemsDir, "zeta", "retropie")
	installDir(t, f.systemsDir, "alpha", "batocera")
	installDir(t, f.systemsDir, "mid", "recalbox")
	installDir(t, f.systemsDir, "old", "retropie")

	newer := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.reg.Put(registry.Record{Name: "mid", Path: filepath.Join(f.systemsDir, "mid"), LastUsed: &newer, Bootable: true}))
	require.NoError(t, f.reg.Put(registry.Record{Name: "old", Path: filepath.Join(f.systemsDir, "old"), LastUsed: &older, Bootable: true}))

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)

	// Timestamped entries first, newest first; then name ascending.
	assert.Equal(t, []string{"mid", "old", "alpha", "zeta"}, names(entries))
}

func TestScanRegistryMetadataWins(t *testing.T) {
	f := newFixture(t)
	path := installDir(t, f.systemsDir, "retro", "retropie", "boot.sh")

	used := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.reg.Put(registry.Record{
		Name: "retro", Path: path, LastUsed: &used, Bootable: false, SizeMB: 777,
	}))

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(777), entries[0].SizeMB)
	assert.False(t, entries[0].Bootable)
	require.NotNil(t, entries[0].LastUsed)
	assert.True(t, entries[0].LastUsed.Equal(used))
}

func TestScanPrunesStaleRecordsLazily(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Put(registry.Record{Name: "ghost", Path: filepath.Join(f.systemsDir, "ghost")}))

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Lazy pruning: the record itself survives the scan.
	_, ok := f.reg.Get("ghost")
	assert.True(t, ok)
}

func TestScanIncludesRegisteredOutsideRoots(t *testing.T) {
	f := newFixture(t)
	outside := installDir(t, t.TempDir(), "custom", "ubuntu")
	require.NoError(t, f.reg.Put(registry.Record{Name: "custom", Path: outside, Bootable: true}))

	entries, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryLinux, entries[0].Category)
}

func TestScanNeverMutatesRegistry(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.systemsDir, "retro", "retropie")

	before := f.reg.All()
	_, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, f.reg.All())
}

func TestRegisterUnregister(t *testing.T) {
	f := newFixture(t)
	path := installDir(t, f.systemsDir, "retro", "retropie")

	require.NoError(t, f.svc.Register("retro", path, 2048))
	rec, ok := f.reg.Get("retro")
	require.True(t, ok)
	assert.True(t, rec.Bootable)
	assert.Equal(t, int64(2048), rec.SizeMB)
	assert.False(t, rec.InstalledAt.IsZero())

	require.NoError(t, f.svc.Unregister("retro"))
	_, ok = f.reg.Get("retro")
	assert.False(t, ok)
}

func TestFindDefault(t *testing.T) {
	f := newFixture(t)
	installDir(t, f.systemsDir, "retro", "retropie")

	entry, ok := f.svc.FindDefault(context.Background(), "retro")
	require.True(t, ok)
	assert.Equal(t, "retro", entry.Name)

	_, ok = f.svc.FindDefault(context.Background(), "missing")
	assert.False(t, ok)
}
