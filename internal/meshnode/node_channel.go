package meshnode

import (
	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
)

// NodeChannel is a channel addressed to a bare node: Sender/Receiver carry
// the node marker (account.NodeMarker) in the account field plus a signer
// address, rather than an on-chain account address.
type NodeChannel struct {
	*Base
	local  account.Address
	remote account.Address
}

// NewNodeChannel constructs a node-addressed channel. polite marks the side
// that yields in negotiation glare; ChannelManager sets it for the side with
// the lexicographically smaller address.
func NewNodeChannel(local, remote account.Address, cfg Config, polite, initiatedByUs bool) *NodeChannel {
	nc := &NodeChannel{local: local, remote: remote}
	nc.Base = NewBase(nc, cfg, polite, initiatedByUs)
	return nc
}

func (n *NodeChannel) LocalParty() envelope.Party {
	return envelope.Party{Account: account.NodeMarker, Signer: n.local}
}

func (n *NodeChannel) RemoteParty() envelope.Party {
	return envelope.Party{Account: account.NodeMarker, Signer: n.remote}
}

// Admit accepts any envelope whose signer matches the remote node address
// and whose account field carries the node marker, since a node channel
// carries no account identity.
func (n *NodeChannel) Admit(env envelope.Envelope) bool {
	if !env.Sender.IsNode() {
		return false
	}
	return env.Sender.Signer.Equal(n.remote)
}

func (n *NodeChannel) LogFields() logging.Fields {
	return logging.Fields{
		"kind":   "node",
		"local":  n.local.String(),
		"remote": n.remote.String(),
	}
}

// Key returns the registry key ChannelManager uses for node channels.
func (n *NodeChannel) Key() NodeKey { return NodeKey(n.remote) }
