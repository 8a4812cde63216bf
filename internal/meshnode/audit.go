package meshnode

import (
	"context"
	"time"

	"github.com/1ureka/meshnode/internal/bufferauditor"
)

// StartAuditor starts the buffer-audit loop for both transports. It is
// idempotent: calling it while an auditor is already running is a no-op.
func (b *Base) StartAuditor() {
	b.auditMu.Lock()
	if b.auditCancel != nil {
		b.auditMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.auditCancel = cancel
	b.cmdAuditor = bufferauditor.New(b.cfg.BufferMaxTime, b.cfg.BufferCleanPeriod)
	b.dataAuditor = bufferauditor.New(b.cfg.BufferMaxTime, b.cfg.BufferCleanPeriod)
	cmdAuditor, dataAuditor := b.cmdAuditor, b.dataAuditor
	b.auditMu.Unlock()

	cmdAuditor.StartCleanup(ctx)
	dataAuditor.StartCleanup(ctx)

	go b.auditLoop(ctx)
}

// stopAuditor halts the buffer-audit loop. Called from closeInternal and
// Dispose so a channel in teardown never fires a spurious stall.
func (b *Base) stopAuditor() {
	b.auditMu.Lock()
	cancel := b.auditCancel
	b.auditCancel = nil
	b.cmdAuditor = nil
	b.dataAuditor = nil
	b.auditMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// auditRecord commits a byte count against the given auditor, a no-op if
// auditing is not currently active (auditor is nil before StartAuditor or
// after stopAuditor).
func (b *Base) auditRecord(a *bufferauditor.Auditor, n int) {
	if a != nil {
		a.Record(n)
	}
}

func (b *Base) auditLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.auditTick()
		}
	}
}

// auditTick performs one audit pass:
//  1. snapshot the two transports, their auditors, and the current state
//  2. audit the command transport; a stall there is fatal and disposes the
//     channel unconditionally, since command carries Ping/Pong/Close/Dispose
//     and losing it means the peer can no longer be reached at all
//  3. while Open, audit the data transport; a stall there only soft-closes,
//     the same way a graceful CloseAsync would, preserving the command
//     channel rather than tearing down the peer connection
func (b *Base) auditTick() {
	b.chMu.Lock()
	command, data, state := b.command, b.data, b.state
	b.chMu.Unlock()

	b.auditMu.Lock()
	cmdAuditor, dataAuditor := b.cmdAuditor, b.dataAuditor
	b.auditMu.Unlock()

	if command != nil && cmdAuditor != nil && !cmdAuditor.Audit(int(command.BufferedAmount())) {
		b.logger.Error("command buffer stall detected", map[string]any{
			"commandBuffered": command.BufferedAmount(),
		})
		b.Dispose()
		return
	}

	if state != StateOpen || data == nil || dataAuditor == nil {
		return
	}

	if !dataAuditor.Audit(int(data.BufferedAmount())) {
		b.logger.Error("data buffer stall detected", map[string]any{
			"dataBuffered": data.BufferedAmount(),
		})
		_ = b.closeInternal(true)
	}
}
