package proxytls

import (
	"crypto/tls"
	"sync"
)

// initOnce guards the one-time crypto provider setup note in spec §9:
// "initialize the TLS library's crypto provider exactly once per process."
// Go's crypto/tls has no separate provider object to initialize, but the
// certificate load/generate step has the same once-per-process contract,
// so it's funneled through the same sync.Once as a single acceptor builder.
var (
	initOnce   sync.Once
	sharedCert tls.Certificate
	sharedErr  error
)

// NewAcceptorConfig builds the *tls.Config the HTTP(S) listener terminates
// connections with: no client auth, TLS 1.2 minimum, ALPN offering
// http/1.1 then http/1.0 (spec §4.3). The underlying certificate is loaded
// or generated exactly once per process and reused by every call.
func NewAcceptorConfig() (*tls.Config, error) {
	initOnce.Do(func() {
		sharedCert, sharedErr = LoadOrGenerate()
	})
	if sharedErr != nil {
		return nil, sharedErr
	}

	return &tls.Config{
		Certificates: []tls.Certificate{sharedCert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1", "http/1.0"},
	}, nil
}
