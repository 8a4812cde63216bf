// Package manager implements the ChannelManager (component G): the
// concurrent registry of NodeChannels and AccountChannels, admission of
// inbound signalling connections, and fan-out of Broadcast/Relay traffic.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
	"github.com/1ureka/meshnode/internal/meshnode"
	"github.com/1ureka/meshnode/internal/signaling"
)

// lifecycle is the manager's own coarse state, independent of any single
// channel's state machine.
type lifecycle int

const (
	lifecycleInit lifecycle = iota
	lifecycleRunning
	lifecycleDisposed
)

// RelayRouter is the extension point for forwarding Relay payloads to a
// receiver this node is not directly connected to. The default manager has
// none configured and simply logs and drops; a mesh-routing layer can
// supply one later without touching ChannelManager itself.
type RelayRouter interface {
	Route(env envelope.Envelope) bool
}

// ChannelManager owns every channel this node has open or is negotiating,
// keyed by remote identity, and is the single admission point for inbound
// signalling connections.
type ChannelManager struct {
	accounts *account.Manager
	cfg      meshnode.Config
	logger   *logging.Logger
	relay    RelayRouter

	mu          sync.Mutex
	state       lifecycle
	nodes       map[meshnode.NodeKey]*meshnode.NodeChannel
	byAccount   map[meshnode.AccountKey]*meshnode.AccountChannel
	keyLocks    map[string]*sync.Mutex
}

// New constructs a ChannelManager in its initial (not yet running) state.
func New(accounts *account.Manager, cfg meshnode.Config) *ChannelManager {
	return &ChannelManager{
		accounts:  accounts,
		cfg:       cfg,
		logger:    logging.Default.With(logging.Fields{"component": "manager"}),
		state:     lifecycleInit,
		nodes:     make(map[meshnode.NodeKey]*meshnode.NodeChannel),
		byAccount: make(map[meshnode.AccountKey]*meshnode.AccountChannel),
		keyLocks:  make(map[string]*sync.Mutex),
	}
}

// SetRelayRouter installs the extension point Relay payloads are forwarded
// through. Optional; without one, Relay traffic this node cannot deliver
// directly is logged and dropped.
func (m *ChannelManager) SetRelayRouter(r RelayRouter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay = r
}

// Start transitions the manager from init to running. Calling it twice is
// a no-op.
func (m *ChannelManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == lifecycleInit {
		m.state = lifecycleRunning
	}
}

// Dispose tears down every channel the manager owns and marks it disposed.
// Safe to call more than once.
func (m *ChannelManager) Dispose() {
	m.mu.Lock()
	if m.state == lifecycleDisposed {
		m.mu.Unlock()
		return
	}
	m.state = lifecycleDisposed
	nodes := make([]*meshnode.NodeChannel, 0, len(m.nodes))
	for _, nc := range m.nodes {
		nodes = append(nodes, nc)
	}
	accts := make([]*meshnode.AccountChannel, 0, len(m.byAccount))
	for _, ac := range m.byAccount {
		accts = append(accts, ac)
	}
	m.mu.Unlock()

	for _, nc := range nodes {
		nc.Dispose()
	}
	for _, ac := range accts {
		ac.Dispose()
	}
}

// keyLock returns (creating if needed) the serialization lock for a
// registry key, so creates/removes for the same remote identity never race.
func (m *ChannelManager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.keyLocks[key] = l
	}
	return l
}

// ListNodes returns a snapshot copy of the registered node keys.
func (m *ChannelManager) ListNodes() []meshnode.NodeKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]meshnode.NodeKey, 0, len(m.nodes))
	for k := range m.nodes {
		out = append(out, k)
	}
	return out
}

// ListAccounts returns a snapshot copy of the registered account keys.
func (m *ChannelManager) ListAccounts() []meshnode.AccountKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]meshnode.AccountKey, 0, len(m.byAccount))
	for k := range m.byAccount {
		out = append(out, k)
	}
	return out
}

// NodeChannel returns the channel registered for key, if any.
func (m *ChannelManager) NodeChannel(key meshnode.NodeKey) (*meshnode.NodeChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nc, ok := m.nodes[key]
	return nc, ok
}

// AccountChannel returns the channel registered for key, if any.
func (m *ChannelManager) AccountChannel(key meshnode.AccountKey) (*meshnode.AccountChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac, ok := m.byAccount[key]
	return ac, ok
}

// ConnectToNode dials remoteURL and opens a node channel to it as the
// initiating side. politeness is resolved lexicographically: the side with
// the smaller address yields in a negotiation race.
func (m *ChannelManager) ConnectToNode(ctx context.Context, remote account.Address, remoteURL string) (*meshnode.NodeChannel, error) {
	m.mu.Lock()
	if m.state != lifecycleRunning {
		m.mu.Unlock()
		return nil, fmt.Errorf("manager: not running")
	}
	m.mu.Unlock()

	key := meshnode.NodeKey(remote)
	lock := m.keyLock(string(key))
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.NodeChannel(key); ok && existing.State() != meshnode.StateDisposed {
		return existing, nil
	}

	local := m.accounts.Address()
	polite := local.String() < remote.String()
	nc := meshnode.NewNodeChannel(local, remote, m.cfg, polite, true)
	m.registerNode(key, nc)

	if err := nc.StartPeerConnection(m.cfg.ICEServers); err != nil {
		m.removeNode(key)
		return nil, err
	}

	client := signaling.NewClient(remoteURL, m.logger.With(logging.Fields{"remote": remote.String()}))
	if err := client.Connect(ctx); err != nil {
		m.removeNode(key)
		return nil, fmt.Errorf("manager: connect signalling: %w", err)
	}

	if err := nc.OpenAsync(ctx, client); err != nil {
		m.removeNode(key)
		return nil, err
	}
	return nc, nil
}

// AcceptSignalling admits an inbound signalling connection: it waits for
// the peer's opening Offer, decides whether to accept or reject, and
// registers the resulting channel.
func (m *ChannelManager) AcceptSignalling(ctx context.Context, conn *signaling.WSSignalling) {
	var once sync.Once
	conn.OnReceiveMessage(func(env envelope.Envelope) {
		once.Do(func() { m.admit(ctx, conn, env) })
	})
}

// admit handles the first inbound envelope on a freshly accepted
// connection. Only an unexpired Offer addressed to this node's signer is a
// valid opener; anything else is dropped and the connection is
// disconnected. Signatures are not verified.
func (m *ChannelManager) admit(ctx context.Context, conn *signaling.WSSignalling, env envelope.Envelope) {
	offer, ok := env.Payload.(envelope.Offer)
	if !ok {
		m.logger.Warning("dropped non-offer opener on signalling connection", nil)
		_ = conn.Disconnect()
		return
	}
	if env.Expired(time.Now()) {
		m.logger.Warning("dropped expired offer on signalling connection", nil)
		_ = conn.Disconnect()
		return
	}
	if !m.accounts.IsSigner(env.Receiver.Signer) {
		m.logger.Warning("dropped offer addressed to another signer", logging.Fields{"receiver": env.Receiver.Signer.String()})
		_ = conn.Disconnect()
		return
	}

	remoteSigner := env.Sender.Signer
	local := m.accounts.Address()
	polite := local.String() < remoteSigner.String()

	if env.Sender.IsNode() {
		m.admitNode(ctx, conn, remoteSigner, polite, offer)
		return
	}
	m.admitAccount(ctx, conn, env.Sender, polite, offer)
}

func (m *ChannelManager) admitNode(ctx context.Context, conn *signaling.WSSignalling, remote account.Address, polite bool, offer envelope.Offer) {
	key := meshnode.NodeKey(remote)
	lock := m.keyLock(string(key))
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.NodeChannel(key); ok && existing.State() != meshnode.StateDisposed {
		nc := meshnode.NewNodeChannel(m.accounts.Address(), remote, m.cfg, polite, false)
		_ = nc.RejectAsync(conn)
		m.logger.Info("rejected duplicate node channel", logging.Fields{"remote": remote.String()})
		return
	}

	nc := meshnode.NewNodeChannel(m.accounts.Address(), remote, m.cfg, polite, false)
	m.registerNode(key, nc)

	if err := nc.StartPeerConnection(m.cfg.ICEServers); err != nil {
		m.removeNode(key)
		return
	}
	if err := nc.AcceptAsync(ctx, conn, offer); err != nil {
		m.logger.Warning("failed to accept node channel", logging.Fields{"err": err.Error()})
		m.removeNode(key)
	}
}

func (m *ChannelManager) admitAccount(ctx context.Context, conn *signaling.WSSignalling, sender envelope.Party, polite bool, offer envelope.Offer) {
	remoteAccount, err := account.ParseAddress(sender.Account)
	if err != nil {
		m.logger.Warning("dropped offer with malformed account", logging.Fields{"err": err.Error()})
		_ = conn.Disconnect()
		return
	}
	key := meshnode.AccountKey{Account: remoteAccount, Signer: sender.Signer}
	lock := m.keyLock(fmt.Sprintf("%s/%s", key.Account, key.Signer))
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.AccountChannel(key); ok && existing.State() != meshnode.StateDisposed {
		ac := meshnode.NewAccountChannel(m.accounts.Address(), m.accounts.Address(), remoteAccount, sender.Signer, m.cfg, polite, false)
		_ = ac.RejectAsync(conn)
		m.logger.Info("rejected duplicate account channel", logging.Fields{"remote": remoteAccount.String()})
		return
	}

	ac := meshnode.NewAccountChannel(m.accounts.Address(), m.accounts.Address(), remoteAccount, sender.Signer, m.cfg, polite, false)
	m.registerAccount(key, ac)

	if err := ac.StartPeerConnection(m.cfg.ICEServers); err != nil {
		m.removeAccount(key)
		return
	}
	if err := ac.AcceptAsync(ctx, conn, offer); err != nil {
		m.logger.Warning("failed to accept account channel", logging.Fields{"err": err.Error()})
		m.removeAccount(key)
	}
}

func (m *ChannelManager) registerNode(key meshnode.NodeKey, nc *meshnode.NodeChannel) {
	m.mu.Lock()
	m.nodes[key] = nc
	m.mu.Unlock()

	nc.OnDispose(func() { m.removeNode(key) })
	nc.OnMessage(func(env envelope.Envelope) { m.dispatch(env) })
}

func (m *ChannelManager) registerAccount(key meshnode.AccountKey, ac *meshnode.AccountChannel) {
	m.mu.Lock()
	m.byAccount[key] = ac
	m.mu.Unlock()

	ac.OnDispose(func() { m.removeAccount(key) })
	ac.OnMessage(func(env envelope.Envelope) { m.dispatch(env) })
}

func (m *ChannelManager) removeNode(key meshnode.NodeKey) {
	m.mu.Lock()
	delete(m.nodes, key)
	m.mu.Unlock()
}

func (m *ChannelManager) removeAccount(key meshnode.AccountKey) {
	m.mu.Lock()
	delete(m.byAccount, key)
	m.mu.Unlock()
}

// dispatch routes an inbound application envelope by payload kind:
// Broadcast fans out to every other account channel, Relay goes through
// the configured RelayRouter (or is dropped), everything else is
// negotiation traffic already handled inside the channel itself.
func (m *ChannelManager) dispatch(env envelope.Envelope) {
	switch env.Payload.(type) {
	case envelope.Broadcast:
		m.fanOutBroadcast(env)
	case envelope.Relay:
		m.routeRelay(env)
	}
}

func (m *ChannelManager) fanOutBroadcast(env envelope.Envelope) {
	m.mu.Lock()
	targets := make([]*meshnode.AccountChannel, 0, len(m.byAccount))
	for key, ac := range m.byAccount {
		if key.Account == "" {
			continue
		}
		if env.Sender.Account != "" && key.Account.Equal(account.Address(env.Sender.Account)) {
			continue
		}
		targets = append(targets, ac)
	}
	m.mu.Unlock()

	for _, ac := range targets {
		if ac.State() != meshnode.StateOpen {
			continue
		}
		_ = ac.Send(env)
	}
}

func (m *ChannelManager) routeRelay(env envelope.Envelope) {
	m.mu.Lock()
	relay := m.relay
	m.mu.Unlock()

	if relay != nil && relay.Route(env) {
		return
	}
	m.logger.Warning("dropped relay envelope with no route", logging.Fields{"sequence": env.Sequence})
}
