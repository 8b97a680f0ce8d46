// Package api implements the command surface exposed to the desktop shell
// (spec §4.8, C8): configuration get/set/load, game detection and launch,
// manager start/stop, certificate passthroughs, and the log ring buffer.
// Game detection, launching, process enumeration and config persistence
// are external collaborators per spec §1 — this package only defines the
// interface seams a real desktop build wires concrete implementations
// into, the same way the teacher lets a caddy.Module be swapped for a
// real implementation without the core depending on it.
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/internal/manager"
	"github.com/rai-osu/connect/internal/proxytls"
	"github.com/rai-osu/connect/internal/state"
	"github.com/rai-osu/connect/internal/trust"
	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

// gameExecutableName is the file validate_game_path checks for under a
// candidate install directory (spec §4.8).
const gameExecutableName = "osu!.exe"

// devserverArg is the literal single-token argument the game is launched
// with to redirect its canonical hostnames through the loopback proxy
// (spec §6 "Game launch").
const devserverArg = "-devserver localhost"

// GameLauncher is the opaque game-installation/process collaborator (spec
// §1): detection, launching and process enumeration are OS-specific and
// supplied by the desktop shell; only path validation stays local.
type GameLauncher interface {
	DetectGame() (string, bool)
	LaunchGame(path, devserverArg string) error
	IsGameRunning() bool
}

// ConfigStore is the opaque key/value document store collaborator (spec
// §1).
type ConfigStore interface {
	Load() (config.AppConfig, error)
	Save(config.AppConfig) error
}

// API is the command surface the desktop shell drives (spec §4.8). It
// owns the in-memory config, the current manager instance (nil when
// disconnected), and shared AppState.
type API struct {
	mu       sync.Mutex
	cfg      config.AppConfig
	launcher GameLauncher
	store    ConfigStore
	state    *state.AppState
	mgr      *manager.Manager
	variant  manager.Variant
	log      *zap.Logger
}

// New builds an API bound to the given external collaborators.
func New(launcher GameLauncher, store ConfigStore, variant manager.Variant) *API {
	return &API{
		cfg:      config.Default(),
		launcher: launcher,
		store:    store,
		state:    state.New(),
		variant:  variant,
		log:      rclog.Named("api"),
	}
}

// GetConfig returns the current in-memory configuration.
func (a *API) GetConfig() config.AppConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetConfig replaces the in-memory configuration and persists it.
func (a *API) SetConfig(cfg config.AppConfig) error {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return a.store.Save(cfg)
}

// LoadSavedConfig loads the persisted configuration into memory and
// returns it. What is returned when nothing was ever saved is up to the
// ConfigStore; on a load error the in-memory config is left unchanged.
func (a *API) LoadSavedConfig() (config.AppConfig, error) {
	cfg, err := a.store.Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("loading saved config: %w", err)
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return cfg, nil
}

// DetectGame delegates to the injected GameLauncher.
func (a *API) DetectGame() (string, bool) {
	return a.launcher.DetectGame()
}

// ValidateGamePath reports whether path/<game executable> is a regular
// file (spec §4.8).
func (a *API) ValidateGamePath(path string) bool {
	exe := gameExecutableName
	if runtime.GOOS != "windows" {
		exe = "osu!"
	}
	info, err := os.Stat(filepath.Join(path, exe))
	return err == nil && info.Mode().IsRegular()
}

// IsGameRunning delegates to the injected GameLauncher.
func (a *API) IsGameRunning() bool {
	return a.launcher.IsGameRunning()
}

// GetStatus returns a snapshot of AppState for the shell to poll.
func (a *API) GetStatus() state.Snapshot {
	return a.state.Snapshot()
}

// Connect implements spec §4.8's async `connect` command: resolve the
// game path, fail if missing, start the manager, then launch the game
// with the devserver argument.
func (a *API) Connect(ctx context.Context) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	gamePath := cfg.OsuPath
	if gamePath == "" {
		detected, ok := a.launcher.DetectGame()
		if !ok {
			return fmt.Errorf("osu! installation not found")
		}
		gamePath = detected
	}
	if !a.ValidateGamePath(gamePath) {
		return fmt.Errorf("osu! installation not found at %q", gamePath)
	}

	if err := a.StartProxy(ctx); err != nil {
		return err
	}

	if err := a.launcher.LaunchGame(gamePath, devserverArg); err != nil {
		a.StopProxy()
		return fmt.Errorf("launching game: %w", err)
	}
	return nil
}

// StartProxy starts the lifecycle manager without touching the game
// process, for headless deployments (e.g. the CLI's `run` command) that
// don't also launch osu! themselves.
func (a *API) StartProxy(ctx context.Context) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	mgr := manager.New(cfg.Proxy, a.variant, a.state)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	a.mu.Lock()
	a.mgr = mgr
	a.mu.Unlock()
	return nil
}

// Manager returns the currently running lifecycle manager, or nil if the
// proxy has not been started. The CLI's metrics endpoint calls this on
// every scrape to reach the current manager's prometheus.Collector.
func (a *API) Manager() *manager.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mgr
}

// StopProxy stops the lifecycle manager, if one is running.
func (a *API) StopProxy() {
	a.mu.Lock()
	mgr := a.mgr
	a.mgr = nil
	a.mu.Unlock()

	if mgr != nil {
		mgr.Stop()
	}
}

// Disconnect implements spec §4.8's async `disconnect` command: stop the
// manager and drop the reference.
func (a *API) Disconnect() {
	a.StopProxy()
}

// IsCertificateInstalled, InstallCertificate, and GetCertificatePath are
// C4 passthroughs (spec §4.8).
func (a *API) IsCertificateInstalled() (bool, error) {
	return trust.IsCertificateInstalled()
}

func (a *API) InstallCertificate() error {
	certPath, err := proxytls.CertPath()
	if err != nil {
		return err
	}
	_, err = trust.InstallCertificate(certPath)
	return err
}

func (a *API) GetCertificatePath() (string, error) {
	return proxytls.CertPath()
}

// WatchHostsFile lets the shell refresh its cached hosts-block installed
// state reactively instead of re-reading the hosts file on a timer: it
// starts a hosts-file watch and re-evaluates trust.IsHostsBlockInstalled on
// every external edit, forwarding the refreshed value. The watch stops and
// the channel is closed when ctx is done.
func (a *API) WatchHostsFile(ctx context.Context) (<-chan bool, error) {
	changed, err := trust.WatchHostsFile(ctx)
	if err != nil {
		return nil, err
	}

	installed := make(chan bool, 1)
	go func() {
		defer close(installed)
		for range changed {
			ok, err := trust.IsHostsBlockInstalled()
			if err != nil {
				a.log.Warn("re-checking hosts block after external edit", zap.Error(err))
				continue
			}
			select {
			case installed <- ok:
			default:
			}
		}
	}()
	return installed, nil
}

// GetLogs returns up to count buffered log entries (0 means all).
func (a *API) GetLogs(count int) []rclog.Entry {
	return rclog.RecentLogs(count)
}

// ClearLogs empties the ring buffer.
func (a *API) ClearLogs() {
	rclog.ClearLogs()
}
