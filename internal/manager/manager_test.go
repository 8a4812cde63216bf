package manager

import (
	"testing"

	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/meshnode"
)

func newTestManager(t *testing.T) *ChannelManager {
	t.Helper()
	local, err := account.NewLocalAccount(0)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	return New(account.NewManager(local), meshnode.DefaultConfig())
}

func TestNewStartsEmptyAndNotRunning(t *testing.T) {
	m := newTestManager(t)
	if len(m.ListNodes()) != 0 || len(m.ListAccounts()) != 0 {
		t.Fatal("expected a freshly constructed manager to have no registered channels")
	}
	if m.state != lifecycleInit {
		t.Fatal("expected a freshly constructed manager to be in lifecycleInit")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	m.Start()
	m.Start()
	if m.state != lifecycleRunning {
		t.Fatal("expected Start to move the manager to lifecycleRunning")
	}
}

func TestDisposeDisposesRegisteredChannelsAndIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	m.Start()

	remote := account.MustAddress("2222222222222222222222222222222222222222")
	nc := meshnode.NewNodeChannel(m.accounts.Address(), remote, m.cfg, true, true)
	m.registerNode(meshnode.NodeKey(remote), nc)

	m.Dispose()
	m.Dispose()

	if nc.State() != meshnode.StateDisposed {
		t.Fatalf("expected the registered node channel to be disposed, got %s", nc.State())
	}
	if _, ok := m.NodeChannel(meshnode.NodeKey(remote)); ok {
		t.Fatal("expected OnDispose to have removed the channel from the registry")
	}
}

func TestKeyLockReturnsSameMutexForSameKey(t *testing.T) {
	m := newTestManager(t)
	a := m.keyLock("same-key")
	b := m.keyLock("same-key")
	if a != b {
		t.Fatal("expected keyLock to return the same mutex instance for the same key")
	}
	c := m.keyLock("different-key")
	if a == c {
		t.Fatal("expected keyLock to return distinct mutexes for distinct keys")
	}
}

type fakeRelayRouter struct {
	routed []envelope.Envelope
	accept bool
}

func (f *fakeRelayRouter) Route(env envelope.Envelope) bool {
	f.routed = append(f.routed, env)
	return f.accept
}

func TestRouteRelayUsesConfiguredRouter(t *testing.T) {
	m := newTestManager(t)
	router := &fakeRelayRouter{accept: true}
	m.SetRelayRouter(router)

	env := envelope.Envelope{Payload: envelope.Relay{Receiver: "x", Text: "hi"}}
	m.routeRelay(env)

	if len(router.routed) != 1 {
		t.Fatalf("expected the relay router to be invoked once, got %d", len(router.routed))
	}
}

func TestRouteRelayDropsWithoutRouter(t *testing.T) {
	m := newTestManager(t)
	env := envelope.Envelope{Payload: envelope.Relay{Receiver: "x", Text: "hi"}}
	m.routeRelay(env) // must not panic with no router configured
}

func TestDispatchRoutesByPayloadKind(t *testing.T) {
	m := newTestManager(t)
	router := &fakeRelayRouter{accept: true}
	m.SetRelayRouter(router)

	m.dispatch(envelope.Envelope{Payload: envelope.Relay{Receiver: "x", Text: "hi"}})
	if len(router.routed) != 1 {
		t.Fatal("expected dispatch to route a Relay payload through the configured router")
	}

	// Broadcast/Offer dispatch must not panic even with no registered accounts.
	m.dispatch(envelope.Envelope{Payload: envelope.Broadcast{Text: "hi"}})
	m.dispatch(envelope.Envelope{Payload: envelope.Offer{SDP: "v=0"}})
}
