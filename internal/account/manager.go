package account

import "fmt"

// Manager holds the node's single signing identity and answers identity
// questions for the channel subsystem (component H). It is constructed once
// by the caller and threaded through explicitly — never a package-level
// singleton, per the "explicit dependency injection" design note.
type Manager struct {
	local *LocalAccount
}

// NewManager wraps the node's local signing account.
func NewManager(local *LocalAccount) *Manager {
	return &Manager{local: local}
}

// Address returns the local node's signer address.
func (m *Manager) Address() Address {
	return m.local.Address()
}

// IsSigner reports whether addr is the local node's signing address.
func (m *Manager) IsSigner(addr Address) bool {
	return m.local.Address().Equal(addr)
}

// Sign signs data with the local signing key.
func (m *Manager) Sign(data []byte) (string, error) {
	return m.local.Sign(data)
}

// Lock zeroizes the local signing key. Further Sign calls fail.
func (m *Manager) Lock() {
	m.local.Lock()
}

// Local returns the underlying LocalAccount.
func (m *Manager) Local() *LocalAccount {
	return m.local
}

func (m *Manager) String() string {
	return fmt.Sprintf("AccountManager{signer=%s}", m.local.Address())
}
