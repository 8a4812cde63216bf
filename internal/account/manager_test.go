package account

import "testing"

func TestManagerIsSigner(t *testing.T) {
	local, err := NewLocalAccount(0)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	mgr := NewManager(local)

	if !mgr.IsSigner(local.Address()) {
		t.Fatal("expected IsSigner to be true for the local account's own address")
	}
	if mgr.IsSigner(MustAddress("1111111111111111111111111111111111111111")) {
		t.Fatal("expected IsSigner to be false for an unrelated address")
	}
	if mgr.Address() != local.Address() {
		t.Fatal("expected Address() to return the wrapped local account's address")
	}
}

func TestManagerSignAndLock(t *testing.T) {
	local, err := NewLocalAccount(0)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	mgr := NewManager(local)

	if _, err := mgr.Sign([]byte("payload")); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	mgr.Lock()
	if _, err := mgr.Sign([]byte("payload")); err == nil {
		t.Fatal("expected Sign to fail once the manager's local account is locked")
	}
}
