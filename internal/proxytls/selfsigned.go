// Package proxytls builds the self-signed leaf certificate the forward
// proxy terminates TLS with (spec §3 Certificate material, §4.3), and
// persists it to the application data directory so it survives restarts.
//
// Certificate generation is adapted from the teacher's
// newSelfSignedCertificate (caddytls/selfsigned.go): same key-type switch,
// same SAN-splitting loop, same random 128-bit serial.
package proxytls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
)

// KeyType selects the leaf's key algorithm (spec §4.3: "ECDSA preferred;
// RSA acceptable for broader client compatibility").
type KeyType string

const (
	KeyTypeEC256  KeyType = "ec256"
	KeyTypeRSA2048 KeyType = "rsa2048"
)

const vendorOrganization = "rai!connect"
const commonName = "rai!connect Local Proxy"

// DefaultSANs are the hostnames and IPs the leaf must cover per spec §3:
// the wildcard (some clients reject a bare one-label wildcard, hence the
// explicit subdomains too) plus loopback v4/v6.
var DefaultSANs = []string{
	"localhost",
	"*.localhost",
	"osu.localhost",
	"c.localhost",
	"a.localhost",
	"b.localhost",
	"i.localhost",
	"127.0.0.1",
	"::1",
}

// selfSignedConfig mirrors the teacher's ssconfig shape.
type selfSignedConfig struct {
	SAN     []string
	KeyType KeyType
	Expire  time.Time
}

// GenerateLeafCertificate creates a fresh self-signed certificate valid
// for the given SANs, expiring after validFor (spec §4.3).
func GenerateLeafCertificate(sans []string, keyType KeyType, validFor time.Duration) (tls.Certificate, error) {
	return newSelfSignedCertificate(selfSignedConfig{
		SAN:     sans,
		KeyType: keyType,
		Expire:  time.Now().Add(validFor),
	})
}

func newSelfSignedCertificate(ssconfig selfSignedConfig) (tls.Certificate, error) {
	var privKey any
	var err error
	switch ssconfig.KeyType {
	case "", KeyTypeEC256:
		privKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyTypeRSA2048:
		privKey, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		return tls.Certificate{}, fmt.Errorf("cannot generate private key; unknown key type %v", ssconfig.KeyType)
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %v", err)
	}

	notBefore := time.Now()
	notAfter := ssconfig.Expire
	if notAfter.IsZero() || notAfter.Before(notBefore) {
		notAfter = notBefore.Add(24 * time.Hour * 825) // ~2 years, well under CA/Browser Forum caps
	}
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %v", err)
	}

	cert := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{vendorOrganization},
		},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	sans := ssconfig.SAN
	if len(sans) == 0 {
		sans = []string{""}
	}
	for _, san := range sans {
		if ip := net.ParseIP(san); ip != nil {
			cert.IPAddresses = append(cert.IPAddresses, ip)
		} else {
			cert.DNSNames = append(cert.DNSNames, strings.ToLower(san))
		}
	}

	publicKey := func(privKey any) any {
		switch k := privKey.(type) {
		case *rsa.PrivateKey:
			return &k.PublicKey
		case *ecdsa.PrivateKey:
			return &k.PublicKey
		default:
			return fmt.Errorf("unknown key type")
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, cert, cert, publicKey(privKey), privKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("could not create certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{derBytes},
		PrivateKey:  privKey,
		Leaf:        cert,
	}, nil
}
