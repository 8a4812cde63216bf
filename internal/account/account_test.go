package account

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
)

func TestNewLocalAccountSignAndLock(t *testing.T) {
	acc, err := NewLocalAccount(0)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	if acc.Address().IsZero() {
		t.Fatal("expected a freshly generated account to have a non-zero address")
	}

	sig, err := acc.Sign([]byte("hello"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig == "" {
		t.Fatal("expected a non-empty signature")
	}

	acc.Lock()
	if _, err := acc.Sign([]byte("hello")); err == nil {
		t.Fatal("expected Sign to fail after Lock")
	}
}

func TestNewLocalAccountFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	seedHex := hex.EncodeToString(seed)

	a, err := NewLocalAccountFromSeed(seedHex, 3)
	if err != nil {
		t.Fatalf("NewLocalAccountFromSeed: %v", err)
	}
	b, err := NewLocalAccountFromSeed(seedHex, 7)
	if err != nil {
		t.Fatalf("NewLocalAccountFromSeed: %v", err)
	}

	if !a.Address().Equal(b.Address()) {
		t.Fatal("expected the same seed to derive the same address regardless of derivation index")
	}
	if a.DerivationIndex() != 3 || b.DerivationIndex() != 7 {
		t.Fatal("expected DerivationIndex to reflect what was passed in")
	}
}

func TestNewLocalAccountFromSeedRejectsBadInput(t *testing.T) {
	if _, err := NewLocalAccountFromSeed("not-hex", 0); err == nil {
		t.Fatal("expected an error for non-hex seed input")
	}
	if _, err := NewLocalAccountFromSeed("aabb", 0); err == nil {
		t.Fatal("expected an error for a seed of the wrong length")
	}
}

func TestEqual(t *testing.T) {
	a := NewExternalAccount(MustAddress("1111111111111111111111111111111111111111"))
	b := NewExternalAccount(MustAddress("1111111111111111111111111111111111111111"))
	c := NewExternalAccount(MustAddress("2222222222222222222222222222222222222222"))

	if !Equal(a, b) {
		t.Fatal("expected accounts with the same address to be equal")
	}
	if Equal(a, c) {
		t.Fatal("expected accounts with different addresses to not be equal")
	}
	if !Equal(nil, nil) {
		t.Fatal("expected Equal(nil, nil) to be true")
	}
	if Equal(a, nil) {
		t.Fatal("expected Equal(a, nil) to be false")
	}
}
