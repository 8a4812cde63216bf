// Package webrtc adapts pion/webrtc PeerConnections and DataChannels to the
// contracts the channel state machine (internal/meshnode) consumes.
package webrtc

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are used when a channel's configuration supplies none.
// No TURN — the mesh is designed for direct P2P connectivity with zero
// relay infrastructure cost.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// NewPeerConnection creates a PeerConnection configured with the given ICE
// servers. At least one (typically STUN) server is expected.
func NewPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultSTUNServers
	}
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
	return webrtc.NewPeerConnection(config)
}

// CreateChannel creates a reliable, ordered DataChannel with the given
// label. Command and data channels carry discrete envelopes and control
// tokens rather than a TCP byte stream, so there is no head-of-line-blocking
// concern to trade away against ordering.
func CreateChannel(pc *webrtc.PeerConnection, label string) (*webrtc.DataChannel, error) {
	return pc.CreateDataChannel(label, nil)
}
