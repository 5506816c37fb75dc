package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"ember/emberr"
)

// BootConfigStore owns the boot configuration file with the same atomic
// replace and serialization discipline as the registry store.
type BootConfigStore struct {
	path           string
	defaultTimeout int
	mu             sync.Mutex
	logger         *slog.Logger
}

// NewBootConfigStore creates the owning store for the boot configuration
// file at path. defaultTimeout is used when no file exists yet.
func NewBootConfigStore(path string, defaultTimeout int, logger *slog.Logger) *BootConfigStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BootConfigStore{path: path, defaultTimeout: defaultTimeout, logger: logger}
}

// Load returns the persisted configuration, substituting defaults when the
// file is missing or unparsable.
func (s *BootConfigStore) Load() BootConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save persists cfg immediately.
func (s *BootConfigStore) Save(cfg BootConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

// SetDefaultOS mutates only the default OS and persists the result.
func (s *BootConfigStore) SetDefaultOS(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.load()
	cfg.DefaultOS = &name
	return s.save(cfg)
}

// SetAvailableSystems refreshes the catalog snapshot kept in the file for
// external readers, preserving the rest of the configuration.
func (s *BootConfigStore) SetAvailableSystems(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.load()
	cfg.AvailableSystems = names
	return s.save(cfg)
}

func (s *BootConfigStore) load() BootConfiguration {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("boot configuration unreadable, using defaults",
				"path", s.path,
				"error", emberr.NewConfigurationMissing("registry.bootconfig", err))
		}
		return DefaultBootConfiguration(s.defaultTimeout)
	}

	var cfg BootConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warn("boot configuration unparsable, using defaults",
			"path", s.path,
			"error", emberr.NewConfigurationMissing("registry.bootconfig", err))
		return DefaultBootConfiguration(s.defaultTimeout)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = s.defaultTimeout
	}
	return cfg
}

func (s *BootConfigStore) save(cfg BootConfiguration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal boot configuration: %w", err)
	}
	return writeAtomic(s.path, data)
}
