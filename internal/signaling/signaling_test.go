package signaling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/1ureka/meshnode/internal/envelope"
)

func startTestListener(t *testing.T, pin string) (*Listener, string) {
	t.Helper()
	l := NewListener(pin, nil)
	port, err := l.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
}

func TestClientConnectsToListener(t *testing.T) {
	l, url := startTestListener(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient(url, nil)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	server, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer server.Disconnect()

	if !client.IsOpen() {
		t.Fatal("expected the client side to report open")
	}
	if !server.IsOpen() {
		t.Fatal("expected the server side to report open")
	}
}

func TestSendQueuesBeforeConnectAndFlushesInOrder(t *testing.T) {
	l, url := startTestListener(t, "")

	client := NewClient(url, nil)

	first := envelope.Envelope{Sequence: 1, Payload: envelope.Broadcast{Text: "one"}}
	second := envelope.Envelope{Sequence: 2, Payload: envelope.Broadcast{Text: "two"}}
	if err := client.Send(first); err != nil {
		t.Fatalf("Send (queued): %v", err)
	}
	if err := client.Send(second); err != nil {
		t.Fatalf("Send (queued): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan envelope.Envelope, 4)
	serverReady := make(chan struct{})
	go func() {
		server, err := l.Accept(ctx)
		if err != nil {
			return
		}
		defer server.Disconnect()
		server.OnReceiveMessage(func(env envelope.Envelope) { received <- env })
		close(serverReady)
		<-ctx.Done()
	}()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	select {
	case <-serverReady:
	case <-time.After(time.Second):
		t.Fatal("server side never became ready")
	}

	var got []envelope.Envelope
	for i := 0; i < 2; i++ {
		select {
		case env := <-received:
			got = append(got, env)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for queued envelope %d", i)
		}
	}

	if len(got) != 2 || got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Fatalf("expected queued sends flushed in order [1,2], got %+v", got)
	}
}

func TestPinRejectsWrongCredential(t *testing.T) {
	_, url := startTestListener(t, "1234")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient(url, nil)
	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail without the required pin")
	}
}

func TestGeneratePINLength(t *testing.T) {
	pin := GeneratePIN(6)
	if len(pin) != 6 {
		t.Fatalf("expected a 6-digit pin, got %q", pin)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			t.Fatalf("expected only digits, got %q", pin)
		}
	}
}
