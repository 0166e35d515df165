package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Compiled-in defaults.
const (
	DefaultKeysBranch        = "__gitks_internal/keys"
	DefaultKeysDir           = ".git/.gpg-home/.gitks"
	DefaultStagingNameLength = 10
)

// User holds the commit identity gitks uses when no flag is given.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Config holds the gitks configuration
type Config struct {
	StagingDir        string `toml:"staging_dir"`
	StagingNameLength int    `toml:"staging_name_length"`
	KeysBranch        string `toml:"keys_branch"`
	KeysDir           string `toml:"keys_dir"`
	CloneDir          string `toml:"clone_dir"`
	User              User   `toml:"user"`
}

// Default returns the default configuration.
// Staging and clone directories are resolved against the user's home.
func Default() Config {
	cfg := Config{
		StagingNameLength: DefaultStagingNameLength,
		KeysBranch:        DefaultKeysBranch,
		KeysDir:           DefaultKeysDir,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.StagingDir = home
		cfg.CloneDir = filepath.Join(home, ".gitks", "servers")
	}
	return cfg
}

// ValidatePath checks that the path is absolute or starts with ~
// Returns error if path is relative (like "." or "..")
func ValidatePath(path, fieldName string) error {
	if path == "" {
		return nil // Empty is allowed (means not configured)
	}
	if path[0] == '~' {
		return nil
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s must be absolute or start with ~, got: %q", fieldName, path)
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	return path, nil
}

// Path returns the path to the config file.
func Path() (string, error) {
	if p := os.Getenv("GITKS_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gitks", "config.toml"), nil
}

// Load reads the config file named by Path.
// Returns Default() if the file doesn't exist (no error).
// Returns an error only if the file exists but is invalid.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return applyEnv(Default())
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path, filling unset fields with defaults.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(Default())
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	var raw Config
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg, err := normalize(raw)
	if err != nil {
		return Default(), err
	}
	return applyEnv(cfg)
}

// normalize validates raw and fills unset fields with defaults.
func normalize(raw Config) (Config, error) {
	def := Default()

	if err := ValidatePath(raw.StagingDir, "staging_dir"); err != nil {
		return def, err
	}
	if err := ValidatePath(raw.CloneDir, "clone_dir"); err != nil {
		return def, err
	}
	if raw.StagingNameLength < 0 {
		return def, fmt.Errorf("staging_name_length must not be negative, got: %d", raw.StagingNameLength)
	}

	cfg := raw
	if cfg.StagingDir == "" {
		cfg.StagingDir = def.StagingDir
	}
	if cfg.CloneDir == "" {
		cfg.CloneDir = def.CloneDir
	}
	if cfg.StagingNameLength == 0 {
		cfg.StagingNameLength = def.StagingNameLength
	}
	if cfg.KeysBranch == "" {
		cfg.KeysBranch = def.KeysBranch
	}
	if cfg.KeysDir == "" {
		cfg.KeysDir = def.KeysDir
	}

	var err error
	if cfg.StagingDir, err = expandPath(cfg.StagingDir); err != nil {
		return def, fmt.Errorf("expand staging_dir: %w", err)
	}
	if cfg.CloneDir, err = expandPath(cfg.CloneDir); err != nil {
		return def, fmt.Errorf("expand clone_dir: %w", err)
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg Config) (Config, error) {
	dir := os.Getenv("GITKS_STAGING_DIR")
	if dir == "" {
		return cfg, nil
	}
	if err := ValidatePath(dir, "GITKS_STAGING_DIR"); err != nil {
		return cfg, err
	}
	expanded, err := expandPath(dir)
	if err != nil {
		return cfg, fmt.Errorf("expand GITKS_STAGING_DIR: %w", err)
	}
	cfg.StagingDir = expanded
	return cfg, nil
}
