package bufferauditor

import (
	"context"
	"testing"
	"time"
)

func TestAuditAllowsWithinCommitments(t *testing.T) {
	a := New(time.Second, time.Millisecond)
	base := time.Unix(0, 0)
	a.now = func() time.Time { return base }

	a.Record(100)
	a.Record(50)

	if !a.Audit(150) {
		t.Fatal("expected Audit to allow buffered bytes equal to the sum of commitments")
	}
	if !a.Audit(0) {
		t.Fatal("expected Audit to allow zero buffered bytes")
	}
}

func TestAuditRejectsBeyondCommitments(t *testing.T) {
	a := New(time.Second, time.Millisecond)
	base := time.Unix(0, 0)
	a.now = func() time.Time { return base }

	a.Record(100)

	if a.Audit(101) {
		t.Fatal("expected Audit to reject buffered bytes exceeding commitments")
	}
}

func TestAuditDropsExpiredCommitments(t *testing.T) {
	a := New(100*time.Millisecond, time.Millisecond)
	now := time.Unix(0, 0)
	a.now = func() time.Time { return now }

	a.Record(200)
	if !a.Audit(200) {
		t.Fatal("expected fresh commitment to cover the buffered bytes")
	}

	now = now.Add(200 * time.Millisecond)
	if a.Audit(200) {
		t.Fatal("expected expired commitment to no longer cover the buffered bytes")
	}
}

func TestRecordIgnoresNonPositiveBytes(t *testing.T) {
	a := New(time.Second, time.Millisecond)
	a.Record(0)
	a.Record(-5)
	if !a.Audit(0) {
		t.Fatal("expected no commitments to still allow a zero buffer")
	}
	if a.Audit(1) {
		t.Fatal("expected no commitments to reject any buffered bytes")
	}
}

func TestStartCleanupRemovesExpiredEntriesInBackground(t *testing.T) {
	a := New(20*time.Millisecond, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartCleanup(ctx)

	a.Record(10)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		empty := a.queue.Len() == 0
		a.mu.Unlock()
		if empty {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected background cleanup to eventually drop the expired entry")
}
