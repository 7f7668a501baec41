package checksum

import "testing"

func TestStrongDeterministic(t *testing.T) {
	a := Strong(BLAKE3, []byte("hello"))
	b := Strong(BLAKE3, []byte("hello"))
	if a != b {
		t.Fatal("BLAKE3 hash not deterministic")
	}
	c := Strong(BLAKE3, []byte("world"))
	if a == c {
		t.Fatal("different inputs produced the same hash")
	}
}

func TestStrongLegacyMD4(t *testing.T) {
	a := Strong(MD4Legacy, []byte("hello"))
	b := Strong(MD4Legacy, []byte("hello"))
	if a != b {
		t.Fatal("MD4 hash not deterministic")
	}
}
