package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"
)

const lockRetryDelay = 100 * time.Millisecond

// configDir is where the default config file lives.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".subdl"), nil
}

// configPath is the file API keys are written to: --config when given,
// otherwise $HOME/.subdl/config.yaml.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// saveAPIKey stores key in the config file and returns the file's path.
func saveAPIKey(ctx context.Context, key string) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	err = updateConfigFile(ctx, path, func(settings map[string]interface{}) {
		section, _ := settings["subsource"].(map[string]interface{})
		if section == nil {
			section = map[string]interface{}{}
		}
		section["apikey"] = key
		settings["subsource"] = section
	})
	return path, err
}

// removeAPIKey deletes the stored key. It reports false when none was stored.
func removeAPIKey(ctx context.Context) (string, bool, error) {
	path, err := configPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, false, nil
	}

	removed := false
	err = updateConfigFile(ctx, path, func(settings map[string]interface{}) {
		section, _ := settings["subsource"].(map[string]interface{})
		if _, ok := section["apikey"]; ok {
			delete(section, "apikey")
			removed = true
		}
	})
	return path, removed, err
}

// updateConfigFile rewrites the config file at path under a lock, touching
// only what mutate changes. A separate viper instance is used so flag
// values and defaults of the running command are not persisted.
func updateConfigFile(ctx context.Context, path string, mutate func(map[string]interface{})) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("could not lock config file: %w", err)
	}
	if !locked {
		return fmt.Errorf("config file %s is locked by another process", path)
	}
	defer func() { _ = lock.Unlock() }()

	current := viper.New()
	current.SetConfigFile(path)
	current.SetConfigType("yaml")
	if err := current.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not read %s: %w", path, err)
		}
	}

	settings := current.AllSettings()
	mutate(settings)

	updated := viper.New()
	updated.SetConfigType("yaml")
	if err := updated.MergeConfigMap(settings); err != nil {
		return err
	}
	if err := updated.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
