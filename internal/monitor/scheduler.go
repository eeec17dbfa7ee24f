package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultMaxWatch     = 30 * time.Minute
)

// Scheduler drives the periodic check-all pass over the registry and applies
// the per-entry state machine:
//
//	MONITORING -> PAID      (remote confirmation, terminal)
//	MONITORING -> EXPIRED   (max watch duration elapsed, terminal)
//	MONITORING -> MONITORING (inconclusive, re-armed)
type Scheduler struct {
	reg      *Registry
	checker  StatusChecker
	sink     Sink
	tick     time.Duration
	maxWatch time.Duration
	log      *zap.Logger
}

func NewScheduler(reg *Registry, checker StatusChecker, sink Sink, tick, maxWatch time.Duration, log *zap.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if maxWatch <= 0 {
		maxWatch = DefaultMaxWatch
	}
	return &Scheduler{
		reg:      reg,
		checker:  checker,
		sink:     sink,
		tick:     tick,
		maxWatch: maxWatch,
		log:      log,
	}
}

// Run ticks until ctx is cancelled. A tick does not overlap the next one:
// the loop blocks until every check from the current tick has resolved.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("payment monitor started",
		zap.Duration("tick", s.tick),
		zap.Duration("max_watch", s.maxWatch),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("payment monitor stopped")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick fans a status check out to every watched entry concurrently and
// waits for all of them.
func (s *Scheduler) runTick(ctx context.Context) {
	entries := s.reg.ListAll()
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(fingerprint string) {
			defer wg.Done()
			// A concurrent force-check may hold the slot; that check covers
			// this tick for the fingerprint.
			_, _ = s.checkOne(ctx, fingerprint)
		}(e.Fingerprint)
	}
	wg.Wait()
}

// ForceCheck runs the single-entry logic out of band, at any time. It
// returns ErrNotMonitored for unknown fingerprints and ErrCheckInFlight when
// a periodic or forced check for the same fingerprint is already running.
func (s *Scheduler) ForceCheck(ctx context.Context, fingerprint string) (Entry, error) {
	return s.checkOne(ctx, fingerprint)
}

// checkOne owns the fingerprint's in-flight slot for the duration of the
// check. The remote call happens outside the registry lock; applying the
// result is a short critical section afterwards.
func (s *Scheduler) checkOne(ctx context.Context, fingerprint string) (Entry, error) {
	e, err := s.reg.beginCheck(fingerprint)
	if err != nil {
		return Entry{}, err
	}
	defer s.reg.endCheck(fingerprint)

	if time.Since(e.CreatedAt) > s.maxWatch {
		final, ok := s.reg.expire(fingerprint)
		if ok {
			s.log.Info("payment expired",
				zap.String("md5", fingerprint),
				zap.String("merchant", final.MerchantName),
				zap.Int("checks", final.CheckCount),
			)
			s.emitExpired(final)
		}
		return final, nil
	}

	res, err := s.checker.Check(ctx, fingerprint)
	if err != nil {
		// Transient failure: same retry path as an unpaid result, but kept
		// distinct in the logs.
		s.log.Warn("status check failed",
			zap.String("md5", fingerprint),
			zap.Error(err),
		)
		final, _ := s.reg.rearm(fingerprint, time.Now())
		return final, nil
	}

	if res.Status == CheckPaid {
		final, ok := s.reg.settle(fingerprint)
		if ok {
			s.log.Info("payment confirmed",
				zap.String("md5", fingerprint),
				zap.String("hash", res.Details.Hash),
				zap.Float64("amount", res.Details.Amount),
				zap.Int("checks", final.CheckCount),
			)
			s.emitPaid(final, res.Details)
		}
		return final, nil
	}

	final, _ := s.reg.rearm(fingerprint, time.Now())
	s.log.Debug("payment still pending",
		zap.String("md5", fingerprint),
		zap.Int("checks", final.CheckCount),
	)
	return final, nil
}

func (s *Scheduler) emitPaid(e Entry, d TxDetails) {
	defer s.recoverSink(e.Fingerprint)
	s.sink.OnPaid(e, d)
}

func (s *Scheduler) emitExpired(e Entry) {
	defer s.recoverSink(e.Fingerprint)
	s.sink.OnExpired(e)
}

func (s *Scheduler) recoverSink(fingerprint string) {
	if r := recover(); r != nil {
		s.log.Error("notification sink panicked",
			zap.String("md5", fingerprint),
			zap.Any("panic", r),
		)
	}
}
