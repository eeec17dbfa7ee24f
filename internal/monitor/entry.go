package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a watched payment. PAID and EXPIRED are
// terminal; the entry leaves the registry in the same transition.
type Status int

const (
	StatusMonitoring Status = iota
	StatusPaid
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusMonitoring:
		return "MONITORING"
	case StatusPaid:
		return "PAID"
	case StatusExpired:
		return "EXPIRED"
	}
	return "UNKNOWN"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "MONITORING":
		*s = StatusMonitoring
	case "PAID":
		*s = StatusPaid
	case "EXPIRED":
		*s = StatusExpired
	default:
		return fmt.Errorf("monitor: unknown status %q", str)
	}
	return nil
}

// Entry is one watched payment, keyed by the payload fingerprint.
type Entry struct {
	Fingerprint  string    `json:"md5"`
	QR           string    `json:"qr"`
	MerchantName string    `json:"merchant_name"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastCheckAt  time.Time `json:"last_check_at"`
	CheckCount   int       `json:"check_count"`
	Status       Status    `json:"status"`
}

// TxDetails carries the settlement details the payment authority returns for
// a confirmed transaction.
type TxDetails struct {
	Hash          string  `json:"hash"`
	FromAccountID string  `json:"fromAccountId"`
	ToAccountID   string  `json:"toAccountId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// CheckStatus is the tri-state outcome of one remote lookup; a checker error
// is the third state.
type CheckStatus int

const (
	CheckNotPaid CheckStatus = iota
	CheckPaid
)

type CheckResult struct {
	Status  CheckStatus
	Details TxDetails
}

// StatusChecker asks the remote payment authority whether a payment has
// settled. Errors are treated as inconclusive and retried next tick.
type StatusChecker interface {
	Check(ctx context.Context, fingerprint string) (CheckResult, error)
}

// Sink receives resolution events, fire-and-forget. A misbehaving sink must
// not affect the scheduler.
type Sink interface {
	OnPaid(e Entry, d TxDetails)
	OnExpired(e Entry)
}
