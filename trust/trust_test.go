package trust

import (
	"path/filepath"
	"testing"
)

type memStore struct {
	m map[string]string
}

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Lookup(hostport string) (string, bool) {
	fp, ok := s.m[hostport]
	return fp, ok
}

func (s *memStore) Record(hostport, fp string) error {
	s.m[hostport] = fp
	return nil
}

func TestLoadOrGenerateServerCredsCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server-cert.pem")
	keyPath := filepath.Join(dir, "server-key.pem")

	cert1, err := LoadOrGenerateServerCreds(certPath, keyPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cert1.Certificate) == 0 {
		t.Fatal("no certificate generated")
	}

	cert2, err := LoadOrGenerateServerCreds(certPath, keyPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if Fingerprint(cert1.Certificate[0]) != Fingerprint(cert2.Certificate[0]) {
		t.Fatal("reloading should return the same persisted cert")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	if a != b {
		t.Fatal("fingerprint not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("want 64 hex chars, got %d", len(a))
	}
}

func TestTOFUFirstSightRecords(t *testing.T) {
	store := newMemStore()
	cfg := ClientConfig("host:9031", store)
	fp := Fingerprint([]byte("cert-der-bytes"))
	if err := cfg.VerifyPeerCertificate([][]byte{[]byte("cert-der-bytes")}, nil); err != nil {
		t.Fatalf("first sight should be accepted: %v", err)
	}
	got, ok := store.Lookup("host:9031")
	if !ok || got != fp {
		t.Fatalf("fingerprint not recorded: got=%q ok=%v", got, ok)
	}
}

func TestTOFUMismatchRejected(t *testing.T) {
	store := newMemStore()
	store.Record("host:9031", Fingerprint([]byte("original")))
	cfg := ClientConfig("host:9031", store)
	err := cfg.VerifyPeerCertificate([][]byte{[]byte("different")}, nil)
	if err == nil {
		t.Fatal("expected FingerprintChanged error")
	}
	tlsErr, ok := err.(*Error)
	if !ok || tlsErr.Kind != FingerprintChanged {
		t.Fatalf("got %v, want FingerprintChanged", err)
	}
}
