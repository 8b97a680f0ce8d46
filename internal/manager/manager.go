// Package manager implements the proxy lifecycle coordinator (spec §4.7,
// C7): it starts and stops the HTTP(S) and TCP relay listeners, awaits
// readiness with a bounded timeout, runs the C4 trust bootstrap, and
// exposes the shared AppState and relay statistics.
//
// Grounded on the teacher's App interface (Start() error / Stop() error
// in caddy.go) and modules/caddyhttp/app.go's Start/Stop bookkeeping,
// simplified to this spec's two listeners; AppState is held behind the
// same sync.RWMutex idiom the teacher uses for its own shared context
// (caddy.go's currentCtxMu).
package manager

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/internal/httpproxy"
	"github.com/rai-osu/connect/internal/proxytls"
	"github.com/rai-osu/connect/internal/relay"
	"github.com/rai-osu/connect/internal/state"
	"github.com/rai-osu/connect/internal/trust"
	"github.com/rai-osu/connect/pkg/rcerr"
	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

// readinessTimeout bounds how long start() waits for both listeners to
// report ready before declaring failure (spec §4.7, §5).
const readinessTimeout = 5 * time.Second

// Variant selects which deployment shape of ProxyManager to run (spec §9
// "Open questions": two shapes exist in the source; both are supported
// here behind this flag rather than picked once and hard-coded).
type Variant int

const (
	// VariantHTTPSWithRelay runs the TLS-terminating HTTP(S) listener plus
	// the trust bootstrap (cert install, hosts file) and the raw TCP relay
	// tunneled separately.
	VariantHTTPSWithRelay Variant = iota
	// VariantPlainHTTPOnly runs only the plaintext HTTP listener without
	// TLS termination or trust bootstrap, for setups where Bancho is
	// tunneled over the same HTTP(S) connection instead of a raw socket.
	VariantPlainHTTPOnly
)

// listener is one of the two owned network listeners, tracked so Stop can
// signal and the accept loop can race shutdown against accept (spec §5,
// §9 "Listener cancellation").
type listener struct {
	name     string
	shutdown chan struct{}
	ready    chan struct{}
}

// Manager is the proxy lifecycle coordinator. One Manager owns at most one
// running instance of each listener at a time.
type Manager struct {
	cfg     config.ProxyConfig
	variant Variant
	state   *state.AppState
	relay   *relay.Relay
	log     *zap.Logger

	httpListener  *listener
	relayListener *listener
}

// New builds a Manager bound to cfg, sharing st for status/statistics
// (spec §5: "shared by reference across tasks").
func New(cfg config.ProxyConfig, variant Variant, st *state.AppState) *Manager {
	return &Manager{
		cfg:     cfg,
		variant: variant,
		state:   st,
		relay:   relay.New(cfg, nil),
		log:     rclog.Named("manager"),
	}
}

// RelayStats exposes the TCP relay's point-in-time statistics. They stay at
// the zero value when the relay listener never ran (e.g. VariantPlainHTTPOnly);
// the counters are cumulative for this Manager and are not reset by Stop.
func (m *Manager) RelayStats() relay.Stats {
	return m.relay.Snapshot()
}

// Start implements the Disconnected→Connecting→{Connected,Error} state
// machine of spec §4.7. Idempotent if already Connected.
func (m *Manager) Start(ctx context.Context) error {
	if m.state.Snapshot().Status == state.Connected {
		return nil
	}

	m.state.SetStatus(state.Connecting)
	m.state.ClearLastError()

	if m.variant == VariantHTTPSWithRelay {
		m.runTrustBootstrap()
	}

	listeners := []*listener{}
	errCh := make(chan error, 2)

	httpL := &listener{name: "http", shutdown: make(chan struct{}), ready: make(chan struct{})}
	m.httpListener = httpL
	listeners = append(listeners, httpL)
	go m.serveHTTP(httpL, errCh)

	if m.variant == VariantHTTPSWithRelay {
		relayL := &listener{name: "relay", shutdown: make(chan struct{}), ready: make(chan struct{})}
		m.relayListener = relayL
		listeners = append(listeners, relayL)
		go m.serveRelay(ctx, relayL, errCh)
	}

	if err := m.awaitReadiness(listeners, errCh); err != nil {
		for _, l := range listeners {
			close(l.shutdown)
		}
		m.state.SetStatus(state.Error)
		m.state.SetLastError(rcerr.UserMessage(err))
		return err
	}

	m.state.SetStatus(state.Connected)
	return nil
}

// awaitReadiness races every listener's ready signal (or its failure on
// errCh) against a single shared timeout (spec §4.7, §5).
func (m *Manager) awaitReadiness(listeners []*listener, errCh chan error) error {
	done := make(chan struct{})
	defer close(done)

	readyCh := make(chan struct{}, len(listeners))
	for _, l := range listeners {
		go func(l *listener) {
			select {
			case <-l.ready:
				readyCh <- struct{}{}
			case <-done:
			}
		}(l)
	}

	deadline := time.NewTimer(readinessTimeout)
	defer deadline.Stop()

	remaining := len(listeners)
	for remaining > 0 {
		select {
		case err := <-errCh:
			return err
		case <-deadline.C:
			return fmt.Errorf("%w", rcerr.ErrReadinessTimeout)
		case <-readyCh:
			remaining--
		}
	}
	return nil
}

// runTrustBootstrap performs the C4 cert-install and hosts-file steps.
// Failures are logged as warnings and never prevent the proxy from
// starting (spec §4.4, §7).
func (m *Manager) runTrustBootstrap() {
	certPath, err := proxytls.CertPath()
	if err != nil {
		m.log.Warn("resolving certificate path", zap.Error(err))
	} else {
		if _, err := proxytls.LoadOrGenerate(); err != nil {
			m.log.Warn("loading or generating certificate", zap.Error(err))
		} else if result, err := trust.InstallCertificate(certPath); err != nil {
			m.log.Warn("certificate install failed", zap.Error(err))
		} else {
			m.log.Info("certificate install", zap.Int("result", int(result)))
		}
	}

	if err := trust.InstallHostsBlock(); err != nil {
		m.log.Warn("hosts file write failed", zap.Error(err))
	}
}

// serveHTTP runs the HTTP(S) forward proxy's accept loop until shutdown is
// signaled (spec §4.5, §5, §9).
func (m *Manager) serveHTTP(l *listener, errCh chan<- error) {
	addr := fmt.Sprintf("127.0.0.1:%d", m.cfg.HTTPPort)
	rawListener, err := net.Listen("tcp", addr)
	if err != nil {
		errCh <- rcerr.ClassifyListenError(err)
		return
	}

	var srv *http.Server
	proxy := httpproxy.New(m.cfg, m.state)

	if m.variant == VariantHTTPSWithRelay {
		tlsCfg, err := proxytls.NewAcceptorConfig()
		if err != nil {
			rawListener.Close()
			errCh <- err
			return
		}
		rawListener = tls.NewListener(rawListener, tlsCfg)
	}

	srv = &http.Server{Handler: proxy.Handler()}

	close(l.ready)

	go func() {
		<-l.shutdown
		srv.Close()
	}()

	if err := srv.Serve(rawListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.log.Warn("http listener stopped", zap.Error(err))
	}
}

// serveRelay runs the TCP relay's accept loop until shutdown is signaled,
// racing accept against the shutdown channel per spec §9's listener
// cancellation model.
func (m *Manager) serveRelay(ctx context.Context, l *listener, errCh chan<- error) {
	port := m.cfg.BanchoPort
	if port == 0 {
		port = 13381
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		errCh <- rcerr.ClassifyListenError(err)
		return
	}

	close(l.ready)

	go func() {
		<-l.shutdown
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-l.shutdown:
				return
			default:
				m.log.Warn("relay accept failed", zap.Error(err))
				return
			}
		}
		go m.relay.HandleConn(ctx, conn)
	}
}

// Stop implements spec §4.7's stop(): signal every owned listener and mark
// Disconnected without waiting for their accept loops to actually return
// (they exit on the next loop iteration once their socket closes).
func (m *Manager) Stop() {
	if m.httpListener != nil {
		closeOnce(m.httpListener.shutdown)
		m.httpListener = nil
	}
	if m.relayListener != nil {
		closeOnce(m.relayListener.shutdown)
		m.relayListener = nil
	}
	m.state.SetStatus(state.Disconnected)
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
