package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riel-labs/khqr-gateway/internal/monitor"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

var paidRecord = Record{
	Fingerprint:  "fp-paid-1",
	MerchantName: "Coffee Corner",
	Amount:       2.5,
	Currency:     "USD",
	SessionID:    "sess-a",
	Status:       "PAID",
	Hash:         "deadbeef",
	Checks:       3,
	ResolvedAt:   1_700_000_000,
}

// ── Append / Totals ───────────────────────────────────────────────────────────

func TestAppend_Totals(t *testing.T) {
	l := New(newTestRedis(t))
	ctx := context.Background()

	if err := l.Append(ctx, paidRecord); err != nil {
		t.Fatalf("Append: %v", err)
	}
	expired := paidRecord
	expired.Fingerprint = "fp-exp-1"
	expired.Status = "EXPIRED"
	expired.Hash = ""
	if err := l.Append(ctx, expired); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, paidRecord); err != nil {
		t.Fatalf("Append: %v", err)
	}

	totals, err := l.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Paid != 2 {
		t.Errorf("Paid: got %d want 2", totals.Paid)
	}
	if totals.Expired != 1 {
		t.Errorf("Expired: got %d want 1", totals.Expired)
	}
}

func TestTotals_Empty(t *testing.T) {
	l := New(newTestRedis(t))
	totals, err := l.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Paid != 0 || totals.Expired != 0 {
		t.Errorf("fresh ledger totals: %+v", totals)
	}
}

// ── Recent ────────────────────────────────────────────────────────────────────

func TestRecent_OrderAndLimit(t *testing.T) {
	l := New(newTestRedis(t))
	ctx := context.Background()

	for _, fp := range []string{"fp-1", "fp-2", "fp-3"} {
		rec := paidRecord
		rec.Fingerprint = fp
		if err := l.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Fingerprint != "fp-2" || got[1].Fingerprint != "fp-3" {
		t.Errorf("wrong window: %q, %q", got[0].Fingerprint, got[1].Fingerprint)
	}
}

func TestRecent_Empty(t *testing.T) {
	l := New(newTestRedis(t))
	got, err := l.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

// ── Sink ──────────────────────────────────────────────────────────────────────

func TestSink_OnPaid(t *testing.T) {
	rdb := newTestRedis(t)
	l := New(rdb)
	s := NewSink(l, zap.NewNop())

	e := monitor.Entry{
		Fingerprint:  "fp-sink",
		MerchantName: "Coffee Corner",
		Amount:       4.0,
		Currency:     "USD",
		SessionID:    "sess-a",
		CheckCount:   2,
		Status:       monitor.StatusPaid,
	}
	s.OnPaid(e, monitor.TxDetails{Hash: "cafef00d"})

	got, err := l.Recent(context.Background(), 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %v (%d records)", err, len(got))
	}
	rec := got[0]
	if rec.Fingerprint != "fp-sink" || rec.Status != "PAID" || rec.Hash != "cafef00d" || rec.Checks != 2 {
		t.Errorf("record: %+v", rec)
	}

	totals, _ := l.Totals(context.Background())
	if totals.Paid != 1 {
		t.Errorf("Paid total: got %d want 1", totals.Paid)
	}
}

func TestSink_OnExpired(t *testing.T) {
	rdb := newTestRedis(t)
	l := New(rdb)
	s := NewSink(l, zap.NewNop())

	s.OnExpired(monitor.Entry{Fingerprint: "fp-exp", Status: monitor.StatusExpired})

	got, _ := l.Recent(context.Background(), 1)
	if len(got) != 1 || got[0].Status != "EXPIRED" {
		t.Fatalf("expected one EXPIRED record, got %+v", got)
	}
	totals, _ := l.Totals(context.Background())
	if totals.Expired != 1 {
		t.Errorf("Expired total: got %d want 1", totals.Expired)
	}
}
