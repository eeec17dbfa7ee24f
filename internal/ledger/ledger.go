package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keys
const (
	resolvedKey     = "ledger:resolved"
	paidTotalKey    = "ledger:paid_total"
	expiredTotalKey = "ledger:expired_total"
)

// Record is one resolved payment. The live registry evicts entries the
// moment they resolve, so this append-only log is the only durable view of
// completed payments.
type Record struct {
	Fingerprint  string  `json:"md5"`
	MerchantName string  `json:"merchant_name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	SessionID    string  `json:"session_id"`
	Status       string  `json:"status"` // PAID or EXPIRED
	Hash         string  `json:"hash,omitempty"`
	Checks       int     `json:"checks"`
	ResolvedAt   int64   `json:"resolved_at"`
}

// Ledger appends resolved payments to Redis.
type Ledger struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

func (l *Ledger) Append(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}
	if err := l.rdb.RPush(ctx, resolvedKey, string(raw)).Err(); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	counter := expiredTotalKey
	if rec.Status == "PAID" {
		counter = paidTotalKey
	}
	return l.rdb.Incr(ctx, counter).Err()
}

// Totals are the historical resolution counters.
type Totals struct {
	Paid    int64 `json:"paid"`
	Expired int64 `json:"expired"`
}

func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	for _, c := range []struct {
		key string
		dst *int64
	}{
		{paidTotalKey, &t.Paid},
		{expiredTotalKey, &t.Expired},
	} {
		n, err := l.rdb.Get(ctx, c.key).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Totals{}, fmt.Errorf("ledger totals: %w", err)
		}
		*c.dst = n
	}
	return t, nil
}

// Recent returns the newest n records, oldest first. Records that fail to
// unmarshal are skipped.
func (l *Ledger) Recent(ctx context.Context, n int64) ([]Record, error) {
	raws, err := l.rdb.LRange(ctx, resolvedKey, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
