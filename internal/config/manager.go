package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. CAMLINK_SERVER_PORT
const EnvPrefix = "CAMLINK"

// ErrUnknownKey is returned by Set and GetValue for keys outside the schema
var ErrUnknownKey = errors.New("unknown config key")

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/camlink/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "camlink", "config.yaml"), nil
}

// NewManager loads the config at configFile, or the default path when empty.
// A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		configPath: path,
		v:          newViper(path),
	}

	if err := m.v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		if err := m.reload(); err != nil {
			return nil, err
		}
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return m, nil
	}

	if err := m.reload(); err != nil {
		return nil, err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// reload decodes viper's merged view (defaults, file, env) into a Config
func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// GetViper exposes the underlying viper instance, e.g. for flag binding.
// Call Refresh after binding so bound values are decoded.
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// Refresh re-decodes the configuration after flags or env changed
func (m *Manager) Refresh() error {
	return m.reload()
}

// Keys returns every known config key, sorted
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for key := range defaults() {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func knownKey(key string) bool {
	_, ok := defaults()[strings.ToLower(key)]
	return ok
}

// GetValue returns the effective value of a single key
func (m *Manager) GetValue(key string) (any, error) {
	if !knownKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return m.v.Get(key), nil
}

// Set updates a single key, validates the result and persists it.
// The value is decoded into the key's type, so "9090" works for a port.
func (m *Manager) Set(key string, value any) error {
	if !knownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	prev := m.v.Get(key)
	m.v.Set(key, value)
	if err := m.reload(); err != nil {
		m.v.Set(key, prev)
		return err
	}
	return m.Save()
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}

// ResolvePath resolves a relative path against the config directory
func (m *Manager) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.GetConfigDir(), path)
}
