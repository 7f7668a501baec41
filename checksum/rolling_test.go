package checksum

import (
	"math/rand"
	"testing"
)

func TestRollingEquivalence(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		blockSize := 16 + r.Intn(64)
		data := make([]byte, blockSize+1)
		r.Read(data)

		window := data[:blockSize]
		roller := InitRolling(window)

		old := data[0]
		newByte := data[blockSize]
		roller.Roll(old, newByte)

		freshWindow := data[1 : blockSize+1]
		fresh := InitRolling(freshWindow)

		if roller.Value() != fresh.Value() {
			t.Fatalf("trial %d: rolled=%d fresh=%d", trial, roller.Value(), fresh.Value())
		}
	}
}

func TestRollingDeterministic(t *testing.T) {
	a := InitRolling([]byte("hello world12345"))
	b := InitRolling([]byte("hello world12345"))
	if a.Value() != b.Value() {
		t.Fatal("same input produced different rolling values")
	}
}
