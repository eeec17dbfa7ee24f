package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/riel-labs/khqr-gateway/internal/crc"
)

// Top-level tags, in the order downstream scanners expect them.
const (
	tagPayloadFormat    = "00"
	tagPointOfInit      = "01"
	tagMerchantAccount  = "29"
	tagMerchantCategory = "52"
	tagCurrency         = "53"
	tagAmount           = "54"
	tagCountry          = "58"
	tagMerchantName     = "59"
	tagMerchantCity     = "60"
	tagAdditionalData   = "62"
	tagCRC              = "63"
	tagTimestamp        = "99"
)

// Sub-field tags.
const (
	subTagAccountID     = "00"
	subTagMillis        = "00"
	subTagBillNumber    = "01"
	subTagMobileNumber  = "02"
	subTagStoreLabel    = "03"
	subTagTerminalLabel = "07"
	subTagPurpose       = "08"
)

const (
	payloadFormatValue = "01"
	initStatic         = "11"
	initDynamic        = "12"
	defaultMCC         = "5999"
	countryCode        = "KH"

	// The CRC is computed over the payload with its own tag+length already
	// appended, before the 4 hex digits exist.
	crcPlaceholder = tagCRC + "04"
)

// Per-attribute length ceilings, checked before any field is built.
const (
	maxMerchantName  = 25
	maxMerchantCity  = 15
	maxMerchantID    = 32
	maxBillNumber    = 25
	maxMobileNumber  = 25
	maxStoreLabel    = 25
	maxTerminalLabel = 25
	maxPurpose       = 25
	maxAmountString  = 14

	amountPadWidth = 11
)

var currencyCodes = map[string]string{
	"USD": "840",
	"KHR": "116",
}

// Params are the merchant and transaction attributes for one payload.
// Amount is only read for dynamic payloads (Static == false).
type Params struct {
	MerchantID    string
	MerchantName  string
	MerchantCity  string
	Amount        float64
	Currency      string
	StoreLabel    string
	MobileNumber  string
	BillNumber    string
	TerminalLabel string
	Purpose       string
	Static        bool
}

// Encode builds the full TLV payload string for p, checksum included.
// Identical inputs produce identical payloads except for the embedded
// millisecond timestamp.
func Encode(p Params) (string, error) {
	return encodeAt(p, time.Now())
}

func encodeAt(p Params, now time.Time) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	code, ok := currencyCodes[p.Currency]
	if !ok {
		return "", fmt.Errorf("khqr: unsupported currency %q", p.Currency)
	}

	init := initDynamic
	if p.Static {
		init = initStatic
	}

	fields := []Field{
		{Tag: tagPayloadFormat, Value: payloadFormatValue},
		{Tag: tagPointOfInit, Value: init},
		{Tag: tagMerchantAccount, Subs: []Field{{Tag: subTagAccountID, Value: p.MerchantID}}},
		{Tag: tagMerchantCategory, Value: defaultMCC},
		{Tag: tagCountry, Value: countryCode},
		{Tag: tagMerchantName, Value: p.MerchantName},
		{Tag: tagMerchantCity, Value: p.MerchantCity},
		{Tag: tagTimestamp, Subs: []Field{
			{Tag: subTagMillis, Value: strconv.FormatInt(now.UnixMilli(), 10)},
		}},
	}

	if !p.Static {
		amt, err := formatAmount(p.Amount)
		if err != nil {
			return "", err
		}
		fields = append(fields, Field{Tag: tagAmount, Value: amt})
	}

	fields = append(fields, Field{Tag: tagCurrency, Value: code})

	subs := []Field{
		{Tag: subTagBillNumber, Value: p.BillNumber},
		{Tag: subTagMobileNumber, Value: p.MobileNumber},
		{Tag: subTagStoreLabel, Value: p.StoreLabel},
		{Tag: subTagTerminalLabel, Value: p.TerminalLabel},
	}
	if p.Purpose != "" {
		subs = append(subs, Field{Tag: subTagPurpose, Value: p.Purpose})
	}
	fields = append(fields, Field{Tag: tagAdditionalData, Subs: subs})

	payload, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	sum := crc.Checksum(payload + crcPlaceholder)
	return payload + crcPlaceholder + sum, nil
}

func (p Params) validate() error {
	checks := []struct {
		name string
		val  string
		max  int
	}{
		{"merchant name", p.MerchantName, maxMerchantName},
		{"merchant city", p.MerchantCity, maxMerchantCity},
		{"merchant id", p.MerchantID, maxMerchantID},
		{"bill number", p.BillNumber, maxBillNumber},
		{"mobile number", p.MobileNumber, maxMobileNumber},
		{"store label", p.StoreLabel, maxStoreLabel},
		{"terminal label", p.TerminalLabel, maxTerminalLabel},
		{"purpose of transaction", p.Purpose, maxPurpose},
	}
	for _, c := range checks {
		if n := utf8.RuneCountInString(c.val); n > c.max {
			return &FieldTooLongError{Field: c.name, Length: n, Max: c.max}
		}
	}
	return nil
}

// formatAmount converts an amount to the padded numeric string embedded in
// the payload. The amount is rounded half-away-from-zero to hundredths; a
// whole amount keeps units only ("10.00" -> "10"), otherwise the two
// fraction digits follow the units with the separator dropped
// ("10.50" -> "1050"). The result is left-padded with '0' to 11 characters.
func formatAmount(amount float64) (string, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("khqr: invalid amount %v", amount)
	}
	cents := int64(math.Round(amount * 100))
	var num string
	if cents%100 == 0 {
		num = strconv.FormatInt(cents/100, 10)
	} else {
		num = fmt.Sprintf("%d%02d", cents/100, cents%100)
	}
	if len(num) < amountPadWidth {
		num = strings.Repeat("0", amountPadWidth-len(num)) + num
	}
	if len(num) > maxAmountString {
		return "", &FieldTooLongError{Field: "amount", Length: len(num), Max: maxAmountString}
	}
	return num, nil
}

// Fingerprint is the lowercase hex MD5 of a serialized payload. The remote
// payment authority looks transactions up by this hash, so it doubles as the
// monitoring key.
func Fingerprint(qr string) string {
	sum := md5.Sum([]byte(qr))
	return hex.EncodeToString(sum[:])
}
