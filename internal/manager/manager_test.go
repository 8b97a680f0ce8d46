package manager

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/internal/state"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestStartStopPlainHTTP exercises the Disconnected->Connecting->Connected
// path for the plain-HTTP deployment variant, which needs neither a
// certificate nor the trust bootstrap (spec §4.7, §9 "two shapes").
func TestStartStopPlainHTTP(t *testing.T) {
	cfg := config.ProxyConfig{
		HTTPPort:      freePort(t),
		InjectSupporter: false,
		DirectBaseURL: "https://example.invalid",
	}
	st := state.New()
	mgr := New(cfg, VariantPlainHTTPOnly, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := st.Snapshot().Status; got != state.Connected {
		t.Fatalf("status = %v, want Connected", got)
	}

	// Starting again while already Connected is a no-op (spec §4.7).
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("second Start should be idempotent: %v", err)
	}

	mgr.Stop()
	if got := st.Snapshot().Status; got != state.Disconnected {
		t.Fatalf("status after Stop = %v, want Disconnected", got)
	}
}

// TestStartPortInUseFails pins spec §4.7/§7's PortInUse classification:
// binding a port already held by another listener surfaces as Error
// without hanging until the readiness timeout.
func TestStartPortInUseFails(t *testing.T) {
	port := freePort(t)
	blocker, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("binding blocker listener: %v", err)
	}
	defer blocker.Close()

	cfg := config.ProxyConfig{
		HTTPPort:      port,
		DirectBaseURL: "https://example.invalid",
	}
	st := state.New()
	mgr := New(cfg, VariantPlainHTTPOnly, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Start(ctx); err == nil {
		t.Fatalf("expected Start to fail when the port is already bound")
	}
	if got := st.Snapshot().Status; got != state.Error {
		t.Fatalf("status = %v, want Error", got)
	}
	if st.Snapshot().LastError == "" {
		t.Fatalf("expected LastError to be set")
	}
}
