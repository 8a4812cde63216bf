package delay

import (
	"testing"
	"time"
)

func TestFiresOnTimeout(t *testing.T) {
	d := New(10 * time.Millisecond)
	fired := make(chan struct{})
	d.OnTimeout = func() { close(fired) }

	if !d.Start() {
		t.Fatal("expected first Start to return true")
	}
	if d.Start() {
		t.Fatal("expected second Start to return false")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected OnTimeout to fire")
	}

	<-d.Done()
	if !d.IsExpired() {
		t.Fatal("expected IsExpired to be true after firing")
	}
	if d.IsCancelled() {
		t.Fatal("expected IsCancelled to be false after a natural timeout")
	}
}

func TestCancelLoudFiresCallback(t *testing.T) {
	d := New(time.Hour)
	cancelled := make(chan struct{})
	d.OnCancellation = func() { close(cancelled) }
	d.Start()

	d.Cancel(false)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected OnCancellation to fire on a loud cancel")
	}
	if !d.IsCancelled() {
		t.Fatal("expected IsCancelled to be true")
	}
	if d.IsExpired() {
		t.Fatal("expected IsExpired to remain false after a cancel")
	}
}

func TestCancelSilentFiresNoCallback(t *testing.T) {
	d := New(time.Hour)
	called := false
	d.OnCancellation = func() { called = true }
	d.Start()

	d.Cancel(true)

	<-d.Done()
	if called {
		t.Fatal("expected a silent cancel to not invoke OnCancellation")
	}
	if !d.IsCancelled() {
		t.Fatal("expected IsCancelled to be true even for a silent cancel")
	}
}

func TestCancelAfterExpiryIsNoop(t *testing.T) {
	d := New(5 * time.Millisecond)
	timedOut := make(chan struct{})
	d.OnTimeout = func() { close(timedOut) }
	d.Start()

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("expected OnTimeout to fire before cancel")
	}

	cancelCalled := false
	d.OnCancellation = func() { cancelCalled = true }
	d.Cancel(false)

	if cancelCalled {
		t.Fatal("expected Cancel after expiry to be a no-op")
	}
	if d.IsCancelled() {
		t.Fatal("expected IsCancelled to remain false once already expired")
	}
}

func TestCancelWithoutStartIsSafe(t *testing.T) {
	d := New(time.Hour)
	d.Cancel(true)
	if !d.IsCancelled() {
		t.Fatal("expected Cancel to be safe and effective even without Start")
	}
}
