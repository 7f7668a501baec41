package blitproto

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := r.Intn(1 << 16)
		payload := make([]byte, n)
		r.Read(payload)
		typ := Type(r.Intn(256))

		var buf bytes.Buffer
		if err := Encode(&buf, typ, payload); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Type != typ {
			t.Fatalf("type: got %v want %v", got.Type, typ)
		}
		if diff := cmp.Diff(payload, got.Payload); diff != "" {
			t.Fatalf("payload mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFrameTooLargeRejectedOnEncode(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, MaxPayload+1)
	if err := Encode(&buf, TypeFileData, big); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestFrameTooLargeRejectedOnDecode(t *testing.T) {
	var hdr [HeaderLen]byte
	copy(hdr[0:4], Magic)
	PutUint16(hdr[4:6], Version)
	hdr[6] = byte(TypeFileData)
	PutUint32(hdr[7:11], MaxPayload+1)
	if _, err := Decode(bytes.NewReader(hdr[:])); err == nil {
		t.Fatal("expected FrameTooLarge on decode")
	}
}

func TestBadMagic(t *testing.T) {
	var hdr [HeaderLen]byte
	copy(hdr[0:4], "XXXX")
	if _, err := Decode(bytes.NewReader(hdr[:])); err == nil {
		t.Fatal("expected BadMagic")
	}
}

func TestVersionMismatch(t *testing.T) {
	var hdr [HeaderLen]byte
	copy(hdr[0:4], Magic)
	PutUint16(hdr[4:6], 2)
	if _, err := Decode(bytes.NewReader(hdr[:])); err == nil {
		t.Fatal("expected VersionMismatch")
	}
}
