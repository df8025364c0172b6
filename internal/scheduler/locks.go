package scheduler

import (
	"context"

	"go.uber.org/zap"
)

const leaseKeyPrefix = "planix:scheduler:lease:"

// acquireLease takes the per-job Redis lease so only one instance drains a
// job at a time. Without Redis, or when Redis errors, the job runs anyway;
// every job is idempotent at the row level.
func (s *Scheduler) acquireLease(ctx context.Context, job string) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}

	key := leaseKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.JobTimeout)
	if err != nil {
		s.logger(ctx).Warn("scheduler lease unavailable; running without it", zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("release scheduler lease", zap.Error(err))
		}
	}, true
}
