package proxytls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

const (
	certFileName = "localhost.cer" // DER
	keyFileName  = "localhost.key" // PKCS#8 DER
	appDirName   = "rai-connect"
)

// AppDataDir returns the per-user application data directory the cert/key
// pair and any other rai!connect state is persisted under (spec §6),
// generalizing the teacher's AssetsPath()/userHomeDir() pattern
// (assets.go) to Windows' LOCALAPPDATA convention.
func AppDataDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appDirName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}

// CertPath and KeyPath return the on-disk locations of the persisted leaf
// certificate and key (spec §6).
func CertPath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, certFileName), nil
}

func KeyPath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, keyFileName), nil
}

// LoadOrGenerate loads the persisted cert/key pair, generating and
// persisting a fresh one if either file is missing or fails to parse
// (spec §4.3: "regenerates only if either file is missing or parsing
// fails").
func LoadOrGenerate() (tls.Certificate, error) {
	certPath, err := CertPath()
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPath, err := KeyPath()
	if err != nil {
		return tls.Certificate{}, err
	}

	if cert, err := load(certPath, keyPath); err == nil {
		return cert, nil
	}

	rclog.Named("proxytls").Info("generating new self-signed certificate",
		zap.String("cert_path", certPath), zap.String("key_path", keyPath))

	cert, err := GenerateLeafCertificate(DefaultSANs, KeyTypeEC256, 24*time.Hour*825)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating certificate: %w", err)
	}
	if err := persist(certPath, keyPath, cert); err != nil {
		return tls.Certificate{}, fmt.Errorf("persisting certificate: %w", err)
	}
	return cert, nil
}

func load(certPath, keyPath string) (tls.Certificate, error) {
	certDER, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyDER, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, err
	}

	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing cert: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing key: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func persist(certPath, keyPath string, cert tls.Certificate) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return fmt.Errorf("creating app data dir: %w", err)
	}

	keyDER, err := marshalPrivateKey(cert.PrivateKey)
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}

	if err := os.WriteFile(certPath, cert.Certificate[0], 0o600); err != nil {
		return fmt.Errorf("writing cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyDER, 0o600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

func marshalPrivateKey(key any) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(key)
}
