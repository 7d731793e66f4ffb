package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

const (
	// DefaultSettingsRefreshInterval is used when no interval is given.
	DefaultSettingsRefreshInterval = 10 * time.Second
)

// FileSettingsProvider serves a Config loaded from disk and reloads it when
// the file's modification time changes. Checks happen in the background at
// most once per refresh interval, so GetSettings never blocks on I/O.
// Overrides given at construction are re-applied to every reload.
// A file that fails to load or validate is ignored and the last good
// settings stay in use.
type FileSettingsProvider struct {
	path            string
	overrides       ConfigOverrides
	logger          common.Logger
	mutex           sync.RWMutex
	cachedSettings  Config
	modTime         time.Time
	lastCheckTime   time.Time
	checkInProgress bool
	refreshInterval time.Duration
	now             func() time.Time
}

// NewFileSettingsProvider creates a provider seeded with initial, which is
// normally the config just loaded from path with overrides applied.
func NewFileSettingsProvider(path string, initial *Config, overrides ConfigOverrides, refreshInterval time.Duration, logger common.Logger) (*FileSettingsProvider, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial settings are required")
	}
	if refreshInterval <= 0 {
		refreshInterval = DefaultSettingsRefreshInterval
	}
	if logger == nil {
		logger = common.NopLogger
	}

	provider := &FileSettingsProvider{
		path:            path,
		overrides:       overrides,
		logger:          logger,
		cachedSettings:  *initial,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}

	if info, err := os.Stat(path); err == nil {
		provider.modTime = info.ModTime()
	}
	provider.lastCheckTime = provider.now()

	return provider, nil
}

// GetSettings returns the current settings, implementing SettingsProvider.
func (p *FileSettingsProvider) GetSettings() Config {
	p.mutex.RLock()
	needsCheck := p.now().Sub(p.lastCheckTime) > p.refreshInterval
	checkInProgress := p.checkInProgress
	current := p.cachedSettings
	p.mutex.RUnlock()

	if needsCheck && !checkInProgress {
		go p.refreshAsync()
	}

	return current
}

func (p *FileSettingsProvider) refreshAsync() {
	p.mutex.Lock()
	if p.checkInProgress {
		p.mutex.Unlock()
		return
	}
	p.checkInProgress = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		p.checkInProgress = false
		p.mutex.Unlock()
	}()

	if _, err := p.Refresh(); err != nil {
		p.logger.Warn("Failed to reload settings, keeping previous values", "path", p.path, "error", err)
	}
}

// Refresh synchronously reloads the file if it changed since the last load.
// It reports whether new settings were applied.
func (p *FileSettingsProvider) Refresh() (bool, error) {
	info, err := os.Stat(p.path)

	p.mutex.Lock()
	p.lastCheckTime = p.now()
	unchanged := err == nil && info.ModTime().Equal(p.modTime)
	p.mutex.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if unchanged {
		return false, nil
	}

	loaded, err := LoadConfig(p.path)
	if err != nil {
		return false, err
	}
	loaded.Override(p.overrides)
	if err := loaded.Validate(); err != nil {
		return false, err
	}

	p.mutex.Lock()
	p.cachedSettings = *loaded
	p.modTime = info.ModTime()
	p.mutex.Unlock()

	p.logger.Info("Reloaded settings", "path", p.path)
	return true, nil
}
