// Package trust implements TLS trust-on-first-use peer authentication
// (spec §4.7): server credential loading/self-signing, and a client-side
// certificate verifier checked against a known-hosts handle rather than a
// CA chain.
package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// ErrorKind enumerates the TlsError variants from spec §7.
type ErrorKind int

const (
	HandshakeFailed ErrorKind = iota
	FingerprintChanged
	InvalidServerName
)

func (k ErrorKind) String() string {
	switch k {
	case HandshakeFailed:
		return "HandshakeFailed"
	case FingerprintChanged:
		return "FingerprintChanged"
	case InvalidServerName:
		return "InvalidServerName"
	default:
		return "Unknown"
	}
}

// Error is TlsError from spec §7.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tls error: %s: %s", e.Kind, e.Detail)
}

// Store is the subset of config.KnownHosts trust needs, so this package
// doesn't import config directly (spec §9: "the TLS verifier carries a
// reference to the known-hosts handle rather than reading a global").
type Store interface {
	Lookup(hostport string) (fingerprint string, ok bool)
	Record(hostport, fingerprint string) error
}

// Fingerprint returns the lowercase-hex SHA-256 digest of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// LoadOrGenerateServerCreds loads a PEM cert/key pair from certPath/keyPath,
// generating and persisting a self-signed certificate for CN "blitd.local"
// if either file is missing.
func LoadOrGenerateServerCreds(certPath, keyPath string) (tls.Certificate, error) {
	if _, err := os.Stat(certPath); err == nil {
		if _, err := os.Stat(keyPath); err == nil {
			return tls.LoadX509KeyPair(certPath, keyPath)
		}
	}
	cert, certPEM, keyPEM, err := generateSelfSigned("blitd.local")
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return tls.Certificate{}, fmt.Errorf("trust: write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return tls.Certificate{}, fmt.Errorf("trust: write key: %w", err)
	}
	return cert, nil
}

func generateSelfSigned(cn string) (tls.Certificate, []byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	return cert, certPEM, keyPEM, nil
}

// ClientConfig builds a tls.Config that performs TOFU verification against
// store for hostport, instead of validating a CA chain.
func ClientConfig(hostport string, store Store) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, // we do our own verification below
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return &Error{Kind: HandshakeFailed, Detail: "no certificate presented"}
			}
			fp := Fingerprint(rawCerts[0])
			known, ok := store.Lookup(hostport)
			if !ok {
				return store.Record(hostport, fp)
			}
			if known != fp {
				return &Error{
					Kind:   FingerprintChanged,
					Detail: fmt.Sprintf("%s: expected %s, got %s", hostport, known, fp),
				}
			}
			return nil
		},
	}
}
