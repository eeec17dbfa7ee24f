package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riel-labs/khqr-gateway/internal/monitor"
)

const appendTimeout = 5 * time.Second

// Sink records resolution events in the ledger. It satisfies monitor.Sink;
// ledger failures are logged and never surface to the scheduler.
type Sink struct {
	ledger *Ledger
	log    *zap.Logger
}

func NewSink(l *Ledger, log *zap.Logger) *Sink {
	return &Sink{ledger: l, log: log}
}

func (s *Sink) OnPaid(e monitor.Entry, d monitor.TxDetails) {
	s.append(Record{
		Fingerprint:  e.Fingerprint,
		MerchantName: e.MerchantName,
		Amount:       e.Amount,
		Currency:     e.Currency,
		SessionID:    e.SessionID,
		Status:       monitor.StatusPaid.String(),
		Hash:         d.Hash,
		Checks:       e.CheckCount,
		ResolvedAt:   time.Now().Unix(),
	})
}

func (s *Sink) OnExpired(e monitor.Entry) {
	s.append(Record{
		Fingerprint:  e.Fingerprint,
		MerchantName: e.MerchantName,
		Amount:       e.Amount,
		Currency:     e.Currency,
		SessionID:    e.SessionID,
		Status:       monitor.StatusExpired.String(),
		Checks:       e.CheckCount,
		ResolvedAt:   time.Now().Unix(),
	})
}

func (s *Sink) append(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := s.ledger.Append(ctx, rec); err != nil {
		s.log.Error("ledger append failed",
			zap.String("md5", rec.Fingerprint),
			zap.String("status", rec.Status),
			zap.Error(err),
		)
	}
}
