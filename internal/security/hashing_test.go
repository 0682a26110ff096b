package security

import (
	"errors"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	password := []byte("Secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash([]byte("Secret123"))
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare with wrong password: want ErrPasswordMismatch, got %v", err)
	}
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := NewHasher(4)
	err := h.Compare("not-a-bcrypt-hash", []byte("x"))
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("malformed hash should return a bcrypt error, got %v", err)
	}
}

func TestHasher_CompareMissing(t *testing.T) {
	h := NewHasher(4)
	for i := 0; i < 2; i++ {
		if err := h.CompareMissing([]byte("anything")); !errors.Is(err, ErrPasswordMismatch) {
			t.Fatalf("CompareMissing: want ErrPasswordMismatch, got %v", err)
		}
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h0 := NewHasher(0); h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if hMax := NewHasher(99); hMax.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", hMax.Cost)
	}
}
