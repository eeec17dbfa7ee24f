package monitor

import (
	"errors"
	"testing"
	"time"
)

func testEntry(fp, session string) Entry {
	return Entry{
		Fingerprint:  fp,
		QR:           "payload-" + fp,
		MerchantName: "Coffee Corner",
		Amount:       2.5,
		Currency:     "USD",
		SessionID:    session,
	}
}

// ── Register / Get ────────────────────────────────────────────────────────────

func TestRegister_Get(t *testing.T) {
	r := NewRegistry()

	got, err := r.Register(testEntry("fp-1", "sess-a"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.Status != StatusMonitoring {
		t.Errorf("Status: got %v want MONITORING", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}

	e, ok := r.Get("fp-1")
	if !ok {
		t.Fatal("Get: entry missing")
	}
	if e.MerchantName != "Coffee Corner" || e.SessionID != "sess-a" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestRegister_ResetsSeedState(t *testing.T) {
	r := NewRegistry()
	seed := testEntry("fp-1", "sess-a")
	seed.Status = StatusPaid
	seed.CheckCount = 7
	seed.LastCheckAt = time.Now()

	got, err := r.Register(seed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusMonitoring || got.CheckCount != 0 || !got.LastCheckAt.IsZero() {
		t.Errorf("seed state leaked into registration: %+v", got)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(testEntry("fp-1", "sess-a")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Register(testEntry("fp-1", "sess-b"))
	if !errors.Is(err, ErrDuplicateFingerprint) {
		t.Errorf("got %v, want ErrDuplicateFingerprint", err)
	}
	// Original registration untouched
	e, _ := r.Get("fp-1")
	if e.SessionID != "sess-a" {
		t.Errorf("duplicate registration mutated entry: %+v", e)
	}
}

// ── Unregister ────────────────────────────────────────────────────────────────

func TestUnregister_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck

	r.Unregister("fp-1")
	if _, ok := r.Get("fp-1"); ok {
		t.Fatal("entry still present after Unregister")
	}
	// Second removal and unknown removal are no-ops
	r.Unregister("fp-1")
	r.Unregister("fp-never")
}

// ── Session index ─────────────────────────────────────────────────────────────

func TestListBySession_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, fp := range []string{"fp-3", "fp-1", "fp-2"} {
		r.Register(testEntry(fp, "sess-a")) //nolint:errcheck
	}
	r.Register(testEntry("fp-other", "sess-b")) //nolint:errcheck

	got := r.ListBySession("sess-a")
	want := []string{"fp-3", "fp-1", "fp-2"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, fp := range want {
		if got[i].Fingerprint != fp {
			t.Errorf("[%d]: got %q want %q", i, got[i].Fingerprint, fp)
		}
	}
}

func TestSessionIndex_RemovedWhenEmpty(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck
	r.Register(testEntry("fp-2", "sess-a")) //nolint:errcheck

	r.Unregister("fp-1")
	if got := r.ListBySession("sess-a"); len(got) != 1 || got[0].Fingerprint != "fp-2" {
		t.Fatalf("expected only fp-2, got %+v", got)
	}

	r.Unregister("fp-2")
	if got := r.ListBySession("sess-a"); len(got) != 0 {
		t.Fatalf("expected empty session, got %+v", got)
	}
	if s := r.Stats(); s.Sessions != 0 {
		t.Errorf("session count: got %d want 0", s.Sessions)
	}
}

// ── Stats ─────────────────────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck
	r.Register(testEntry("fp-2", "sess-a")) //nolint:errcheck
	r.Register(testEntry("fp-3", "sess-b")) //nolint:errcheck

	s := r.Stats()
	if s.Sessions != 2 {
		t.Errorf("Sessions: got %d want 2", s.Sessions)
	}
	if s.Active != 3 {
		t.Errorf("Active: got %d want 3", s.Active)
	}
	if s.Monitoring != 3 {
		t.Errorf("Monitoring: got %d want 3", s.Monitoring)
	}
	if s.Paid != 0 {
		t.Errorf("Paid: got %d want 0", s.Paid)
	}
}

// ── Terminal transitions evict ────────────────────────────────────────────────

func TestSettle_RemovesAndCounts(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck

	final, ok := r.settle("fp-1")
	if !ok {
		t.Fatal("settle: entry missing")
	}
	if final.Status != StatusPaid {
		t.Errorf("Status: got %v want PAID", final.Status)
	}
	if final.CheckCount != 1 {
		t.Errorf("CheckCount: got %d want 1", final.CheckCount)
	}
	if _, ok := r.Get("fp-1"); ok {
		t.Error("settled entry still in registry")
	}
}

func TestExpire_RemovesWithoutCounting(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck

	final, ok := r.expire("fp-1")
	if !ok {
		t.Fatal("expire: entry missing")
	}
	if final.Status != StatusExpired {
		t.Errorf("Status: got %v want EXPIRED", final.Status)
	}
	if final.CheckCount != 0 {
		t.Errorf("CheckCount: got %d want 0 (expiry issues no check)", final.CheckCount)
	}
	if _, ok := r.Get("fp-1"); ok {
		t.Error("expired entry still in registry")
	}
}

// ── In-flight guard ───────────────────────────────────────────────────────────

func TestBeginCheck_Exclusive(t *testing.T) {
	r := NewRegistry()
	r.Register(testEntry("fp-1", "sess-a")) //nolint:errcheck

	if _, err := r.beginCheck("fp-1"); err != nil {
		t.Fatalf("first beginCheck: %v", err)
	}
	if _, err := r.beginCheck("fp-1"); !errors.Is(err, ErrCheckInFlight) {
		t.Errorf("second beginCheck: got %v, want ErrCheckInFlight", err)
	}

	r.endCheck("fp-1")
	if _, err := r.beginCheck("fp-1"); err != nil {
		t.Errorf("beginCheck after release: %v", err)
	}
}

func TestBeginCheck_Unknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.beginCheck("fp-missing"); !errors.Is(err, ErrNotMonitored) {
		t.Errorf("got %v, want ErrNotMonitored", err)
	}
}
