package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rai-osu/connect/internal/config"
)

// fileConfigStore is a minimal stand-in for the desktop shell's real
// key/value document store (spec §1: "Configuration persistence ... treat
// as load_config(), save_config(cfg)"): a single JSON file holding the
// "config" document, good enough for the headless CLI build.
type fileConfigStore struct {
	path string
}

func newFileConfigStore(path string) *fileConfigStore {
	return &fileConfigStore{path: path}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "raiconnect-config.json"
	}
	return filepath.Join(dir, "rai-connect", "config.json")
}

func (s *fileConfigStore) Load() (config.AppConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return config.AppConfig{}, err
	}
	var cfg config.AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.AppConfig{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *fileConfigStore) Save(cfg config.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// osGameLauncher is a minimal stand-in for the desktop shell's real
// game-detection/process-launching collaborator (spec §1). It supports
// launching a configured executable directly but leaves detection and
// process enumeration unimplemented, since those are genuinely
// OS-specific concerns owned by the shell in a full build.
type osGameLauncher struct{}

func newOSGameLauncher() *osGameLauncher {
	return &osGameLauncher{}
}

func (l *osGameLauncher) DetectGame() (string, bool) {
	return "", false
}

func (l *osGameLauncher) LaunchGame(path, devserverArg string) error {
	exe := "osu!.exe"
	if runtime.GOOS != "windows" {
		exe = "osu!"
	}
	return launchProcess(filepath.Join(path, exe), path, devserverArg)
}

func (l *osGameLauncher) IsGameRunning() bool {
	return false
}
