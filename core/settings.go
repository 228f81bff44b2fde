package core

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings are the tool's own preferences, kept apart from any Steam
// file.
type Settings struct {
	// BackupRoot overrides where backups are written.
	BackupRoot string `json:"backupRoot"`
	// SteamRoot overrides Steam installation discovery.
	SteamRoot string `json:"steamRoot"`
}

func settingsDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, APP_NAME), nil
}

func settingsPath() (string, error) {
	dir, err := settingsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

func ReadSettings() (*Settings, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ReadSettingsOrDefault falls back to zero-value settings when the file
// is missing or unreadable.
func ReadSettingsOrDefault() *Settings {
	settings, err := ReadSettings()
	if err != nil {
		return &Settings{}
	}
	return settings
}

func CommitSettings(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	dir, err := settingsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := settingsPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveSteamRoot applies the settings override before falling back to
// discovery.
func (s *Settings) ResolveSteamRoot() (string, error) {
	if s.SteamRoot != "" {
		if !dirExists(s.SteamRoot) {
			return "", ErrSteamNotFound
		}
		return s.SteamRoot, nil
	}
	return DefaultSteamRoot()
}

// ResolveBackupRoot applies the settings override before falling back to
// the default backup location.
func (s *Settings) ResolveBackupRoot() (string, error) {
	if s.BackupRoot != "" {
		return s.BackupRoot, nil
	}
	return DefaultBackupRoot()
}
