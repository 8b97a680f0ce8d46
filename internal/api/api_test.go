package api

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/internal/manager"
)

type fakeLauncher struct {
	detectPath string
	detectOK   bool
	launched   []string
	running    bool
}

func (f *fakeLauncher) DetectGame() (string, bool) { return f.detectPath, f.detectOK }
func (f *fakeLauncher) LaunchGame(path, devserverArg string) error {
	f.launched = append(f.launched, path, devserverArg)
	return nil
}
func (f *fakeLauncher) IsGameRunning() bool { return f.running }

type fakeStore struct {
	saved  config.AppConfig
	loaded config.AppConfig
}

func (s *fakeStore) Load() (config.AppConfig, error) { return s.loaded, nil }
func (s *fakeStore) Save(cfg config.AppConfig) error  { s.saved = cfg; return nil }

func TestValidateGamePath(t *testing.T) {
	dir := t.TempDir()
	exe := "osu!.exe"
	if runtime.GOOS != "windows" {
		exe = "osu!"
	}
	if err := os.WriteFile(filepath.Join(dir, exe), []byte("x"), 0o755); err != nil {
		t.Fatalf("writing fixture exe: %v", err)
	}

	a := New(&fakeLauncher{}, &fakeStore{}, manager.VariantHTTPSWithRelay)
	if !a.ValidateGamePath(dir) {
		t.Fatalf("expected %q to validate", dir)
	}
	if a.ValidateGamePath(t.TempDir()) {
		t.Fatalf("expected empty dir to not validate")
	}
}

func TestGetSetConfigPersists(t *testing.T) {
	store := &fakeStore{}
	a := New(&fakeLauncher{}, store, manager.VariantHTTPSWithRelay)

	cfg := config.Default()
	cfg.OsuPath = "/games/osu"
	if err := a.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if store.saved.OsuPath != "/games/osu" {
		t.Fatalf("expected persisted config to carry OsuPath")
	}
	if a.GetConfig().OsuPath != "/games/osu" {
		t.Fatalf("expected in-memory config to update")
	}
}

func TestConnectFailsWithoutGamePath(t *testing.T) {
	a := New(&fakeLauncher{detectOK: false}, &fakeStore{}, manager.VariantHTTPSWithRelay)
	if err := a.Connect(context.Background()); err == nil {
		t.Fatalf("expected an error when the game cannot be found")
	}
}
