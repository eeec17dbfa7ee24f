package monitor

import "context"

// Service is the public monitoring surface consumed by the HTTP layer. It
// owns nothing itself; the registry holds the state and the scheduler runs
// the checks.
type Service struct {
	reg   *Registry
	sched *Scheduler
}

func NewService(reg *Registry, sched *Scheduler) *Service {
	return &Service{reg: reg, sched: sched}
}

// Watch registers a freshly issued payload for settlement monitoring.
func (s *Service) Watch(e Entry) (*Entry, error) {
	return s.reg.Register(e)
}

// Unwatch stops monitoring a payload. Idempotent.
func (s *Service) Unwatch(fingerprint string) {
	s.reg.Unregister(fingerprint)
}

func (s *Service) Get(fingerprint string) (Entry, bool) {
	return s.reg.Get(fingerprint)
}

func (s *Service) BySession(sessionID string) []Entry {
	return s.reg.ListBySession(sessionID)
}

// ForceCheck performs one out-of-band status check, serialized against the
// periodic tick for the same fingerprint.
func (s *Service) ForceCheck(ctx context.Context, fingerprint string) (Entry, error) {
	return s.sched.ForceCheck(ctx, fingerprint)
}

func (s *Service) Stats() Stats {
	return s.reg.Stats()
}
