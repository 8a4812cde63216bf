package account

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Account is implemented by the three account variants: LocalAccount,
// ExternalAccount, RegisteredAccount. Comparison between accounts is by
// address, never by pointer identity.
type Account interface {
	Address() Address
	isAccount()
}

// ExternalAccount is an address the node does not own.
type ExternalAccount struct {
	addr Address
}

// NewExternalAccount wraps an address as an external account.
func NewExternalAccount(addr Address) ExternalAccount { return ExternalAccount{addr: addr} }

func (e ExternalAccount) Address() Address { return e.addr }
func (ExternalAccount) isAccount()         {}

// RegisteredAccount is an external address plus a display name — an
// on-chain registered account.
type RegisteredAccount struct {
	addr        Address
	DisplayName string
}

// NewRegisteredAccount wraps an address and display name as a registered account.
func NewRegisteredAccount(addr Address, displayName string) RegisteredAccount {
	return RegisteredAccount{addr: addr, DisplayName: displayName}
}

func (r RegisteredAccount) Address() Address { return r.addr }
func (RegisteredAccount) isAccount()         {}

// LocalAccount is an address the node owns. It may carry a sealed private
// key (zeroized by Lock) and a mnemonic-derivation index.
type LocalAccount struct {
	addr            Address
	derivationIndex int

	mu  sync.Mutex
	key ed25519.PrivateKey // nil once locked or if never unlocked
}

// NewLocalAccount creates a LocalAccount with a freshly generated signing
// key. derivationIndex is informational — it records which mnemonic-derived
// key slot this account corresponds to.
func NewLocalAccount(derivationIndex int) (*LocalAccount, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("account: generate signing key: %w", err)
	}
	addr, err := ParseAddress(fmt.Sprintf("%040x", pub[:20]))
	if err != nil {
		return nil, fmt.Errorf("account: derive address: %w", err)
	}
	return &LocalAccount{addr: addr, derivationIndex: derivationIndex, key: priv}, nil
}

// NewLocalAccountFromSeed derives a LocalAccount from a hex-encoded
// ed25519 seed (ed25519.SeedSize bytes), for nodes that persist their
// identity across restarts rather than minting a fresh one each run.
func NewLocalAccountFromSeed(seedHex string, derivationIndex int) (*LocalAccount, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("account: invalid seed hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("account: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	addr, err := ParseAddress(fmt.Sprintf("%040x", pub[:20]))
	if err != nil {
		return nil, fmt.Errorf("account: derive address: %w", err)
	}
	return &LocalAccount{addr: addr, derivationIndex: derivationIndex, key: priv}, nil
}

func (l *LocalAccount) Address() Address { return l.addr }
func (*LocalAccount) isAccount()         {}

// DerivationIndex returns the mnemonic-derivation index this account was
// created from.
func (l *LocalAccount) DerivationIndex() int { return l.derivationIndex }

// Lock zeroizes the sealed private key. Sign fails after Lock.
func (l *LocalAccount) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.key {
		l.key[i] = 0
	}
	l.key = nil
}

// Sign signs data with the sealed key. Fails if the account has been locked.
func (l *LocalAccount) Sign(data []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.key == nil {
		return "", fmt.Errorf("account: %s is locked, cannot sign", l.addr)
	}
	sig := ed25519.Sign(l.key, data)
	return fmt.Sprintf("%x", sig), nil
}

// Equal compares two accounts by address only.
func Equal(a, b Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Address().Equal(b.Address())
}
