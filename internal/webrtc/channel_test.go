package webrtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// pairedPeerConnections wires two loopback PeerConnections together without
// reaching out to any STUN/TURN server, trickling ICE candidates directly
// between the two as they're gathered.
func pairedPeerConnections(t *testing.T) (offerPC, answerPC *webrtc.PeerConnection) {
	t.Helper()
	var err error
	offerPC, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection(offer): %v", err)
	}
	answerPC, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection(answer): %v", err)
	}

	offerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = answerPC.AddICECandidate(c.ToJSON())
	})
	answerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = offerPC.AddICECandidate(c.ToJSON())
	})

	t.Cleanup(func() {
		_ = offerPC.Close()
		_ = answerPC.Close()
	})
	return offerPC, answerPC
}

func negotiate(t *testing.T, offerPC, answerPC *webrtc.PeerConnection) {
	t.Helper()
	offer, err := offerPC.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := offerPC.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription(offer): %v", err)
	}
	if err := answerPC.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription(offer): %v", err)
	}

	answer, err := answerPC.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := answerPC.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription(answer): %v", err)
	}
	if err := offerPC.SetRemoteDescription(answer); err != nil {
		t.Fatalf("SetRemoteDescription(answer): %v", err)
	}
}

func TestDataChannelSendReceiveAcrossPairedPeerConnections(t *testing.T) {
	offerPC, answerPC := pairedPeerConnections(t)

	raw, err := CreateChannel(offerPC, "data")
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	local := WrapChannel(raw)

	remoteCh := make(chan *DataChannel, 1)
	answerPC.OnDataChannel(func(d *webrtc.DataChannel) {
		remoteCh <- WrapChannel(d)
	})

	negotiate(t, offerPC, answerPC)

	var remote *DataChannel
	select {
	case remote = <-remoteCh:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the remote side to observe the data channel")
	}

	opened := make(chan struct{})
	local.OnOpen(func() { close(opened) })
	select {
	case <-opened:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the local data channel to open")
	}

	received := make(chan []byte, 1)
	remote.OnMessage(func(data []byte) { received <- data })

	if err := local.Send([]byte("hello mesh")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello mesh" {
			t.Fatalf("expected %q, got %q", "hello mesh", data)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the remote side to receive the message")
	}

	if !local.IsOpen() {
		t.Fatal("expected the local data channel to report open")
	}
}

func TestNewPeerConnectionFallsBackToDefaultSTUNServers(t *testing.T) {
	pc, err := NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	cfg := pc.GetConfiguration()
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) != len(DefaultSTUNServers) {
		t.Fatalf("expected the default STUN servers to be applied, got %+v", cfg.ICEServers)
	}
}
