package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"osint-market/ratelimit"
)

// MaintenanceScheduler owns the periodic sweeps: claim expiry, bounty
// deadlines, stuck resolutions and limiter bucket eviction.
type MaintenanceScheduler struct {
	bounties *BountyService
	resolver *ResolverService
	queue    ResolutionQueue
	limiter  *ratelimit.Limiter
	sched    gocron.Scheduler
}

func NewMaintenanceScheduler(bounties *BountyService, resolver *ResolverService, queue ResolutionQueue, limiter *ratelimit.Limiter) (*MaintenanceScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &MaintenanceScheduler{
		bounties: bounties,
		resolver: resolver,
		queue:    queue,
		limiter:  limiter,
		sched:    sched,
	}, nil
}

func (m *MaintenanceScheduler) Start() {
	// Every minute: release lapsed claims, expire overdue bounties and
	// drop idle rate limiter buckets.
	_, _ = m.sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := m.bounties.ReleaseStaleClaims(ctx); err != nil {
				zap.S().Errorf("[Scheduler] claim sweep failed: %v", err)
			}
			if _, err := m.bounties.ExpireOverdue(ctx); err != nil {
				zap.S().Errorf("[Scheduler] expiry sweep failed: %v", err)
			}
			if evicted := m.limiter.Evict(); evicted > 0 {
				zap.S().Debugf("[Scheduler] evicted %d idle rate limit buckets", evicted)
			}
		}),
	)

	// Every 5 minutes: re-queue bounties stuck in submitted.
	_, _ = m.sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := m.resolver.SweepSubmitted(ctx, m.queue); err != nil {
				zap.S().Errorf("[Scheduler] resolution sweep failed: %v", err)
			}
		}),
	)

	m.sched.Start()
	zap.S().Info("⏱️ Maintenance scheduler started")
}

func (m *MaintenanceScheduler) Stop() {
	if err := m.sched.Shutdown(); err != nil {
		zap.S().Errorf("[Scheduler] shutdown error: %v", err)
	}
}
