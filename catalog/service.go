package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ember/config"
	"ember/registry"
)

// Service implements Catalog over the configured source roots and the
// registry store.
type Service struct {
	cfg    *config.Config
	reg    *registry.Store
	logger *slog.Logger
}

// NewService creates the catalog service.
func NewService(cfg *config.Config, reg *registry.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, reg: reg, logger: logger}
}

// Scan enumerates all source roots, classifies candidates, reconciles the
// result with the registry and returns the ordered view. Per-root failures
// are logged and skipped; scan itself only fails on context cancellation.
func (s *Service) Scan(ctx context.Context) ([]OSEntry, error) {
	// Each source scans concurrently into its own slot; the merge order
	// below is fixed so name collisions resolve the same way every scan.
	var fromSystems, fromBoot, fromImages, fromMedia []OSEntry

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fromSystems = s.scanSystemsDir(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		fromBoot = s.scanBootRoots(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		fromImages = s.scanImageDirs(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		fromMedia = s.scanMediaRoots(ctx)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	discovered := make([]OSEntry, 0, len(fromSystems)+len(fromBoot)+len(fromImages)+len(fromMedia))
	discovered = append(discovered, fromSystems...)
	discovered = append(discovered, fromBoot...)
	discovered = append(discovered, fromImages...)
	discovered = append(discovered, fromMedia...)

	entries := s.reconcile(discovered)
	sortEntries(entries)
	return entries, nil
}

// Register records an installed OS. This is one of the only two registry
// mutators besides Unregister.
func (s *Service) Register(name, path string, sizeMB int64) error {
	return s.reg.Put(registry.Record{
		Name:        name,
		Path:        path,
		InstalledAt: time.Now().UTC(),
		Bootable:    true,
		SizeMB:      sizeMB,
	})
}

// Unregister removes an OS from the registry.
func (s *Service) Unregister(name string) error {
	return s.reg.Remove(name)
}

// FindDefault returns the catalog entry for name if a scan can see it.
func (s *Service) FindDefault(ctx context.Context, name string) (*OSEntry, bool) {
	entries, err := s.Scan(ctx)
	if err != nil {
		return nil, false
	}
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i], true
		}
	}
	return nil, false
}

// scanSystemsDir treats every subdirectory of the install root as one
// payload named after the directory.
func (s *Service) scanSystemsDir(ctx context.Context) []OSEntry {
	dir := s.cfg.Storage.SystemsDir
	items, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("skipping unreadable systems dir", "dir", dir, "error", err)
		}
		return nil
	}

	var entries []OSEntry
	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		path := filepath.Join(dir, item.Name())
		category, description := classifyDir(path)
		entries = append(entries, OSEntry{
			Name:        item.Name(),
			Path:        path,
			Category:    category,
			Description: description,
			Bootable:    isBootableDir(path),
		})
	}
	return entries
}

// scanBootRoots identifies each configured boot partition in place; the
// partition itself is the payload.
func (s *Service) scanBootRoots(ctx context.Context) []OSEntry {
	var entries []OSEntry
	for _, root := range s.cfg.Scan.BootRoots {
		if entry, ok := s.identifyBootDir(root); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// scanMediaRoots checks every mounted directory under the removable-media
// roots for a bootable payload.
func (s *Service) scanMediaRoots(ctx context.Context) []OSEntry {
	var entries []OSEntry
	for _, root := range s.cfg.Scan.MediaRoots {
		items, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("skipping unreadable media root", "dir", root, "error", err)
			}
			continue
		}
		for _, item := range items {
			if !item.IsDir() {
				continue
			}
			if entry, ok := s.identifyBootDir(filepath.Join(root, item.Name())); ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries
}

// identifyBootDir classifies a directory that is itself a boot payload.
// Directories without any recognizable signature are not included; a media
// mount full of documents is not an OS.
func (s *Service) identifyBootDir(path string) (OSEntry, bool) {
	if _, err := os.Stat(path); err != nil {
		return OSEntry{}, false
	}
	category, description := classifyDir(path)
	if category == CategoryUnknown {
		return OSEntry{}, false
	}
	return OSEntry{
		Name:        nameForCategory(category),
		Path:        path,
		Category:    category,
		Description: description,
		Bootable:    true,
	}, true
}

// scanImageDirs picks up standalone image files classified by filename.
func (s *Service) scanImageDirs(ctx context.Context) []OSEntry {
	var entries []OSEntry
	for _, dir := range s.cfg.Scan.ImageDirs {
		items, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("skipping unreadable image dir", "dir", dir, "error", err)
			}
			continue
		}
		for _, item := range items {
			if item.IsDir() || !isImageFile(item.Name()) {
				continue
			}
			category, description := classifyImageFile(item.Name())
			entries = append(entries, OSEntry{
				Name:        item.Name(),
				Path:        filepath.Join(dir, item.Name()),
				Category:    category,
				Description: description,
				Bootable:    true,
			})
		}
	}
	return entries
}

// reconcile merges discovered entries with registry metadata and includes
// registered systems whose directories still exist even when no scan root
// covered them. Disk presence decides inclusion; registry records win for
// timestamps and metadata not derivable from disk. Stale records (path
// gone) are excluded from the view but deliberately left in the registry.
func (s *Service) reconcile(discovered []OSEntry) []OSEntry {
	records := s.reg.All()

	byName := make(map[string]OSEntry, len(discovered))
	for _, entry := range discovered {
		if _, err := os.Stat(entry.Path); err != nil {
			continue
		}
		if _, dup := byName[entry.Name]; dup {
			continue
		}
		if rec, ok := records[entry.Name]; ok {
			entry.LastUsed = rec.LastUsed
			entry.Bootable = rec.Bootable
			entry.SizeMB = rec.SizeMB
		}
		byName[entry.Name] = entry
	}

	for name, rec := range records {
		if _, seen := byName[name]; seen {
			continue
		}
		if _, err := os.Stat(rec.Path); err != nil {
			continue // stale: pruned lazily from the view only
		}
		category, description := classifyDir(rec.Path)
		byName[name] = OSEntry{
			Name:        name,
			Path:        rec.Path,
			Category:    category,
			Description: description,
			Bootable:    rec.Bootable,
			LastUsed:    rec.LastUsed,
			SizeMB:      rec.SizeMB,
		}
	}

	entries := make([]OSEntry, 0, len(byName))
	for _, entry := range byName {
		entries = append(entries, entry)
	}
	return entries
}

// sortEntries orders the view: last-used descending, any timestamp before
// none, name ascending among the untimestamped. Total and stable.
func sortEntries(entries []OSEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.LastUsed != nil && b.LastUsed != nil:
			if !a.LastUsed.Equal(*b.LastUsed) {
				return a.LastUsed.After(*b.LastUsed)
			}
			return a.Name < b.Name
		case a.LastUsed != nil:
			return true
		case b.LastUsed != nil:
			return false
		default:
			return a.Name < b.Name
		}
	})
}

func nameForCategory(c Category) string {
	switch c {
	case CategoryRetroPie:
		return "RetroPie"
	case CategoryBatocera:
		return "Batocera"
	case CategoryRecalbox:
		return "Recalbox"
	case CategoryStockOS:
		return "Raspberry Pi OS"
	case CategoryLinux:
		return "Linux System"
	default:
		return "Unknown System"
	}
}
