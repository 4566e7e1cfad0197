package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"osint-market/apperr"
	"osint-market/services"
)

// ResolverWorker drains the resolution queue. Submissions land on a
// bounded channel; when it fills, Enqueue returns false and the
// periodic sweep picks the bounty up later.
type ResolverWorker struct {
	resolver *services.ResolverService
	tasks    chan string
	delay    time.Duration
}

func NewResolverWorker(resolver *services.ResolverService, queueSize int, delay time.Duration) *ResolverWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &ResolverWorker{
		resolver: resolver,
		tasks:    make(chan string, queueSize),
		delay:    delay,
	}
}

// Enqueue hands a bounty to the worker without blocking the caller.
func (w *ResolverWorker) Enqueue(bountyID string) bool {
	select {
	case w.tasks <- bountyID:
		return true
	default:
		return false
	}
}

func (w *ResolverWorker) Start(ctx context.Context) {
	zap.S().Info("🔁 Starting resolver worker…")
	go w.run(ctx)
}

func (w *ResolverWorker) run(ctx context.Context) {
	for {
		select {
		case bountyID := <-w.tasks:
			// Brief settle delay so the submission transaction is
			// visible before judging.
			if w.delay > 0 {
				select {
				case <-time.After(w.delay):
				case <-ctx.Done():
					return
				}
			}
			w.process(ctx, bountyID)
		case <-ctx.Done():
			zap.S().Info("⏹️ Resolver worker stopped")
			return
		}
	}
}

func (w *ResolverWorker) process(ctx context.Context, bountyID string) {
	if err := w.resolver.Resolve(ctx, bountyID); err != nil {
		if apperr.Retryable(err) {
			zap.S().Warnf("[Resolver] bounty %s hit a retryable failure, the sweep will retry: %v", bountyID, err)
			return
		}
		zap.S().Errorf("[Resolver] bounty %s failed: %v", bountyID, err)
	}
}
