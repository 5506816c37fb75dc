package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ember/catalog"
	"ember/config"
	"ember/device"
	"ember/emberr"
	"ember/registry"
)

// Manager implements Service. Mutating operations are serialized with a
// mutex so a remote-triggered install can never interleave with a local
// update's backup-restore sequence on the same directory tree.
type Manager struct {
	cfg     *config.Config
	cat     catalog.Catalog
	reg     *registry.Store
	bootCfg *registry.BootConfigStore
	backups BackupRepository
	runner  Runner
	profile device.DeviceProfile
	client  *http.Client
	logger  *slog.Logger

	mu sync.Mutex
}

// NewManager creates the lifecycle manager.
func NewManager(
	cfg *config.Config,
	cat catalog.Catalog,
	reg *registry.Store,
	bootCfg *registry.BootConfigStore,
	backups BackupRepository,
	runner Runner,
	profile device.DeviceProfile,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		cat:     cat,
		reg:     reg,
		bootCfg: bootCfg,
		backups: backups,
		runner:  runner,
		profile: profile,
		client:  &http.Client{Timeout: 10 * time.Minute},
		logger:  logger,
	}
}

// Install puts the payload from source under the systems root as name. An
// existing install for name is deleted first; callers wanting to keep it
// take a backup beforehand.
func (m *Manager) Install(ctx context.Context, source, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.install(ctx, source, name)
}

// validateName rejects OS names that would resolve outside the systems
// root when joined to it. Every operation taking a name goes through this;
// the names arrive from the remote API as well as local callers.
func validateName(op, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return emberr.NewValidationFailure(op, fmt.Errorf("invalid os name %q", name))
	}
	return nil
}

func (m *Manager) install(ctx context.Context, source, name string) error {
	const op = "lifecycle.install"

	if err := validateName(op, name); err != nil {
		return err
	}

	if isURL(source) {
		local, err := m.fetchToTemp(ctx, source)
		if err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(local); err != nil {
				m.logger.Warn("could not remove fetched file", "path", local, "error", err)
			}
		}()
		source = local
	}

	if _, err := os.Stat(source); err != nil {
		return emberr.NewSourceUnavailable(op, source, err)
	}

	installDir := filepath.Join(m.cfg.Storage.SystemsDir, name)
	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("%s: clear existing install: %w", op, err)
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("%s: create install dir: %w", op, err)
	}

	if err := m.extractAndConfigure(ctx, source, name, installDir); err != nil {
		if rmErr := os.RemoveAll(installDir); rmErr != nil {
			m.logger.Warn("could not remove partial install", "path", installDir, "error", rmErr)
		}
		return err
	}

	sizeMB := dirSizeMB(installDir)
	if err := m.cat.Register(name, installDir, sizeMB); err != nil {
		return fmt.Errorf("%s: register %s: %w", op, name, err)
	}
	m.refreshAvailableSystems()

	m.logger.Info("installed os", "name", name, "path", installDir, "size_mb", sizeMB)
	return nil
}

func (m *Manager) extractAndConfigure(ctx context.Context, source, name, installDir string) error {
	ct := m.detectContainer(ctx, source)
	if err := m.extract(ctx, ct, source, installDir); err != nil {
		return err
	}

	if err := m.writeMetadata(installDir, name, source); err != nil {
		return err
	}
	if err := applyOptimizations(m.profile, installDir, m.logger); err != nil {
		return err
	}
	return m.writeBootScript(installDir, name)
}

// detectContainer resolves the container type by extension first, then by
// content sniffing through the file tool. Unresolved content is treated as
// a raw disk image.
func (m *Manager) detectContainer(ctx context.Context, source string) containerType {
	lower := strings.ToLower(source)
	switch {
	case strings.HasSuffix(lower, ".iso"):
		return containerISO
	case strings.HasSuffix(lower, ".img"):
		return containerIMG
	case strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"):
		return containerTar
	case strings.HasSuffix(lower, ".zip"):
		return containerZip
	}

	out, err := m.runner.Run(ctx, "file", source)
	if err != nil {
		m.logger.Warn("content sniff failed, assuming raw image", "source", source, "error", err)
		return containerIMG
	}

	info := strings.ToLower(string(out))
	switch {
	case strings.Contains(info, "iso 9660"):
		return containerISO
	case strings.Contains(info, "tar") || strings.Contains(info, "gzip"):
		return containerTar
	case strings.Contains(info, "zip"):
		return containerZip
	default:
		return containerIMG
	}
}

func (m *Manager) extract(ctx context.Context, ct containerType, source, installDir string) error {
	switch ct {
	case containerISO:
		return m.mountAndCopy(ctx, source, installDir)
	case containerIMG:
		return m.extractIMG(ctx, source, installDir)
	case containerTar:
		_, err := m.runner.Run(ctx, "tar", "-xf", source, "-C", installDir)
		return err
	case containerZip:
		_, err := m.runner.Run(ctx, "unzip", "-q", source, "-d", installDir)
		return err
	default:
		return emberr.NewValidationFailure("lifecycle.extract", fmt.Errorf("unhandled container type %d", ct))
	}
}

// mountAndCopy loop-mounts image at a temporary mount point and copies its
// contents into installDir. The mount point is unmounted and removed on
// every exit path; cleanup failures are logged, not surfaced.
func (m *Manager) mountAndCopy(ctx context.Context, image, installDir string) error {
	mountPoint, err := os.MkdirTemp("", "ember-mount-")
	if err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}
	defer func() {
		if err := os.Remove(mountPoint); err != nil {
			m.logger.Warn("could not remove mount point", "path", mountPoint, "error", err)
		}
	}()

	if _, err := m.runner.Run(ctx, "mount", "-o", "loop", image, mountPoint); err != nil {
		return err
	}
	defer func() {
		if _, err := m.runner.Run(ctx, "umount", mountPoint); err != nil {
			m.logger.Warn("could not unmount", "path", mountPoint, "error", err)
		}
	}()

	_, err = m.runner.Run(ctx, "cp", "-a", mountPoint+"/.", installDir)
	return err
}

// extractIMG copies the raw image into the install directory with dd, then
// tries to mount it and extract its contents. The content extraction is
// best effort; many raw images carry partition tables that a plain loop
// mount cannot open.
func (m *Manager) extractIMG(ctx context.Context, source, installDir string) error {
	target := filepath.Join(installDir, "system.img")
	if _, err := m.runner.Run(ctx, "dd", "if="+source, "of="+target, "bs=4M", "conv=fsync"); err != nil {
		return err
	}

	if err := m.mountAndCopy(ctx, target, installDir); err != nil {
		m.logger.Warn("could not extract image contents", "image", target, "error", err)
	}
	return nil
}

func (m *Manager) writeMetadata(installDir, name, source string) error {
	meta := installMetadata{
		Name:        name,
		InstalledAt: time.Now().UTC(),
		Bootable:    true,
		DeviceClass: string(m.profile.Class),
		Source:      source,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal install metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(installDir, "ember.json"), data, 0o644)
}

// writeBootScript drops the dispatch script the boot engine hands off to.
func (m *Manager) writeBootScript(installDir, name string) error {
	script := fmt.Sprintf(`#!/bin/sh
# Boot dispatch for %s
export EMBER_OS=%q
export EMBER_PATH=%q
exec /sbin/init
`, name, name, installDir)

	scriptPath := filepath.Join(installDir, "boot.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write boot script: %w", err)
	}
	return os.Chmod(scriptPath, 0o755)
}

// fetchToTemp downloads a URL source to a transient file, preserving the
// extension so container detection still works on the local copy.
func (m *Manager) fetchToTemp(ctx context.Context, source string) (string, error) {
	const op = "lifecycle.fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", emberr.NewSourceUnavailable(op, source, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", emberr.NewSourceUnavailable(op, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", emberr.NewSourceUnavailable(op, source, fmt.Errorf("unexpected status %s", resp.Status))
	}

	tmp, err := os.CreateTemp("", "ember-fetch-*"+remoteExt(source))
	if err != nil {
		return "", fmt.Errorf("%s: create temp file: %w", op, err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", emberr.NewSourceUnavailable(op, source, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%s: close temp file: %w", op, err)
	}
	return tmp.Name(), nil
}

// Backup archives the named install under the backup root and records it.
func (m *Manager) Backup(ctx context.Context, name string) (*BackupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backup(ctx, name)
}

func (m *Manager) backup(ctx context.Context, name string) (*BackupRecord, error) {
	const op = "lifecycle.backup"

	if err := validateName(op, name); err != nil {
		return nil, err
	}

	installDir := filepath.Join(m.cfg.Storage.SystemsDir, name)
	if _, err := os.Stat(installDir); err != nil {
		return nil, emberr.NewNotFound(op, name)
	}

	if err := os.MkdirAll(m.cfg.Storage.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: create backup dir: %w", op, err)
	}

	// The stamp has second granularity, so two backups of one OS in the
	// same second would share a path and the second tar would overwrite
	// the first archive. Advance the stamp until the path is free.
	at := time.Now().UTC()
	archivePath := filepath.Join(m.cfg.Storage.BackupDir,
		fmt.Sprintf("%s_%s.tar.gz", name, at.Format("20060102_150405")))
	for {
		if _, err := os.Stat(archivePath); os.IsNotExist(err) {
			break
		}
		at = at.Add(time.Second)
		archivePath = filepath.Join(m.cfg.Storage.BackupDir,
			fmt.Sprintf("%s_%s.tar.gz", name, at.Format("20060102_150405")))
	}

	if _, err := m.runner.Run(ctx, "tar", "-czf", archivePath, "-C", m.cfg.Storage.SystemsDir, name); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%s: stat archive: %w", op, err)
	}

	bootable := true
	if rec, ok := m.reg.Get(name); ok {
		bootable = rec.Bootable
	}

	record := &BackupRecord{
		OSName:      name,
		SizeMB:      info.Size() / (1024 * 1024),
		ArchivePath: archivePath,
		Bootable:    bootable,
	}
	if err := m.backups.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("%s: save record: %w", op, err)
	}

	m.logger.Info("backed up os", "name", name, "archive", archivePath, "size_mb", record.SizeMB)
	return record, nil
}

// Backups lists backup records whose archives still exist, newest first.
// Records whose archive file has gone missing are dropped from the view
// and their stale index entries removed.
func (m *Manager) Backups(ctx context.Context) ([]*BackupRecord, error) {
	all, err := m.backups.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return m.pruneBackups(ctx, all), nil
}

// BackupsFor lists the live backup records for one OS, newest first.
func (m *Manager) BackupsFor(ctx context.Context, name string) ([]*BackupRecord, error) {
	recs, err := m.backups.GetByOS(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.pruneBackups(ctx, recs), nil
}

// pruneBackups drops records whose archive file has gone missing, removes
// their stale index entries and orders the rest newest first.
func (m *Manager) pruneBackups(ctx context.Context, recs []*BackupRecord) []*BackupRecord {
	var live []*BackupRecord
	for _, rec := range recs {
		if _, err := os.Stat(rec.ArchivePath); err != nil {
			m.logger.Warn("pruning backup record with missing archive", "id", rec.ID, "archive", rec.ArchivePath)
			if delErr := m.backups.Delete(ctx, rec.ID); delErr != nil {
				m.logger.Warn("could not delete stale backup record", "id", rec.ID, "error", delErr)
			}
			continue
		}
		live = append(live, rec)
	}

	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})
	return live
}

// Restore replaces the install directory for the record's OS from its
// archive and re-registers the OS. Registry metadata from before the
// restore is overwritten.
func (m *Manager) Restore(ctx context.Context, rec *BackupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restore(ctx, rec)
}

func (m *Manager) restore(ctx context.Context, rec *BackupRecord) error {
	const op = "lifecycle.restore"

	if err := validateName(op, rec.OSName); err != nil {
		return err
	}
	if _, err := os.Stat(rec.ArchivePath); err != nil {
		return emberr.NewNotFound(op, rec.ArchivePath)
	}

	installDir := filepath.Join(m.cfg.Storage.SystemsDir, rec.OSName)
	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("%s: clear install dir: %w", op, err)
	}
	if err := os.MkdirAll(m.cfg.Storage.SystemsDir, 0o755); err != nil {
		return fmt.Errorf("%s: create systems dir: %w", op, err)
	}

	if _, err := m.runner.Run(ctx, "tar", "-xzf", rec.ArchivePath, "-C", m.cfg.Storage.SystemsDir); err != nil {
		return err
	}

	if err := m.cat.Register(rec.OSName, installDir, dirSizeMB(installDir)); err != nil {
		return fmt.Errorf("%s: register %s: %w", op, rec.OSName, err)
	}
	m.refreshAvailableSystems()

	m.logger.Info("restored os", "name", rec.OSName, "archive", rec.ArchivePath)
	return nil
}

// RestoreByID restores from a stored backup record.
func (m *Manager) RestoreByID(ctx context.Context, id string) error {
	rec, err := m.backups.Get(ctx, id)
	if err != nil {
		return emberr.NewNotFound("lifecycle.restore", id)
	}
	return m.Restore(ctx, rec)
}

// Remove deletes an install. With makeBackup set, the backup must succeed
// before anything is deleted; a failing backup leaves the OS intact.
func (m *Manager) Remove(ctx context.Context, name string, makeBackup bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "lifecycle.remove"

	if err := validateName(op, name); err != nil {
		return err
	}

	installDir := filepath.Join(m.cfg.Storage.SystemsDir, name)
	if _, err := os.Stat(installDir); err != nil {
		return emberr.NewNotFound(op, name)
	}

	if makeBackup {
		if _, err := m.backup(ctx, name); err != nil {
			return fmt.Errorf("%s: pre-removal backup: %w", op, err)
		}
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("%s: delete install dir: %w", op, err)
	}
	if err := m.cat.Unregister(name); err != nil {
		return fmt.Errorf("%s: unregister %s: %w", op, name, err)
	}
	m.refreshAvailableSystems()

	m.logger.Info("removed os", "name", name, "backup_taken", makeBackup)
	return nil
}

// Update reinstalls name from source, taking a backup first. Any install
// failure triggers an automatic restore from that backup; the caller sees
// the original failure, joined with the rollback failure if the rollback
// also fails. The rollback restores the directory tree and re-registers
// from it, it does not revert other registry metadata.
func (m *Manager) Update(ctx context.Context, name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup, err := m.backup(ctx, name)
	if err != nil {
		return fmt.Errorf("lifecycle.update: pre-update backup: %w", err)
	}

	if err := m.install(ctx, source, name); err != nil {
		m.logger.Warn("update failed, rolling back", "name", name, "error", err)
		if restoreErr := m.restore(ctx, backup); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", restoreErr))
		}
		return err
	}

	m.logger.Info("updated os", "name", name, "backup", backup.ArchivePath)
	return nil
}

// SetDefault marks an installed OS as the boot default.
func (m *Manager) SetDefault(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateName("lifecycle.setdefault", name); err != nil {
		return err
	}

	installDir := filepath.Join(m.cfg.Storage.SystemsDir, name)
	_, registered := m.reg.Get(name)
	if !registered {
		if _, err := os.Stat(installDir); err != nil {
			return emberr.NewNotFound("lifecycle.setdefault", name)
		}
	}

	return m.bootCfg.SetDefaultOS(name)
}

// bootSequence is the category-specific preparation run before hand-off.
type bootSequence func(ctx context.Context, m *Manager, entry catalog.OSEntry)

var bootSequences = map[catalog.Category]bootSequence{
	catalog.CategoryRetroPie: prepareGamingBoot,
	catalog.CategoryBatocera: prepareGamingBoot,
	catalog.CategoryRecalbox: prepareGamingBoot,
	catalog.CategoryStockOS:  prepareLinuxBoot,
	catalog.CategoryLinux:    prepareLinuxBoot,
	catalog.CategoryUnknown:  prepareUnknownBoot,
}

// Dispatch runs the category-specific boot sequence for entry and signals
// the hand-off. The signal is fire and forget; the process that consumes
// boot.sh is outside this one, so no success is verified here.
func (m *Manager) Dispatch(ctx context.Context, entry catalog.OSEntry) error {
	prep, ok := bootSequences[entry.Category]
	if !ok {
		prep = prepareUnknownBoot
	}
	prep(ctx, m, entry)

	script := filepath.Join(entry.Path, "boot.sh")
	if _, err := os.Stat(script); err != nil {
		m.logger.Warn("no boot script, skipping hand-off", "name", entry.Name, "path", script)
		return nil
	}
	if _, err := m.runner.Run(ctx, "/bin/sh", script); err != nil {
		m.logger.Warn("boot hand-off reported failure", "name", entry.Name, "error", err)
	}
	return nil
}

func prepareGamingBoot(_ context.Context, m *Manager, entry catalog.OSEntry) {
	m.logger.Info("preparing gaming boot", "name", entry.Name, "category", entry.Category)

	// Handhelds need the display configured before the frontend starts.
	if m.profile.IsGamingHandheld() {
		displayPath := filepath.Join(entry.Path, "display_config.txt")
		if _, err := os.Stat(displayPath); err != nil {
			if err := optimizeHandheld(m.profile, entry.Path, m.logger); err != nil {
				m.logger.Warn("could not write display config", "name", entry.Name, "error", err)
			}
		}
	}
}

func prepareLinuxBoot(_ context.Context, m *Manager, entry catalog.OSEntry) {
	m.logger.Info("preparing linux boot", "name", entry.Name, "category", entry.Category)

	hasKernel := false
	for _, kernel := range []string{"vmlinuz", "kernel.img", "system.img"} {
		if _, err := os.Stat(filepath.Join(entry.Path, kernel)); err == nil {
			hasKernel = true
			break
		}
	}
	if !hasKernel {
		m.logger.Warn("no kernel image found in install", "name", entry.Name, "path", entry.Path)
	}
}

func prepareUnknownBoot(_ context.Context, m *Manager, entry catalog.OSEntry) {
	m.logger.Warn("booting unclassified os with generic sequence", "name", entry.Name, "path", entry.Path)
}

// refreshAvailableSystems mirrors the registered names into the boot
// configuration snapshot external readers consume. The snapshot is
// advisory; failures are logged, never surfaced.
func (m *Manager) refreshAvailableSystems() {
	records := m.reg.All()
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := m.bootCfg.SetAvailableSystems(names); err != nil {
		m.logger.Warn("could not refresh available systems snapshot", "error", err)
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// remoteExt maps a source URL onto the archive suffix container detection
// keys on, ignoring query strings and fragments.
func remoteExt(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		source = u.Path
	}
	base := strings.ToLower(filepath.Base(source))
	for _, ext := range []string{".tar.gz", ".tgz", ".tar", ".zip", ".iso", ".img"} {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}
	return ""
}

// dirSizeMB walks the tree and sums regular file sizes. Unreadable paths
// are skipped; size is advisory metadata, not an invariant.
func dirSizeMB(dir string) int64 {
	var bytes int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				bytes += info.Size()
			}
		}
		return nil
	})
	return bytes / (1024 * 1024)
}
