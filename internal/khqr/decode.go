package khqr

import (
	"fmt"
	"strconv"

	"github.com/riel-labs/khqr-gateway/internal/crc"
)

// Top-level tags whose values are themselves TLV sequences.
var nestedTags = map[string]bool{
	tagMerchantAccount: true,
	tagAdditionalData:  true,
	tagTimestamp:       true,
}

// Decode parses a payload back into its field sequence and verifies the
// trailing CRC. It is the exact inverse of Encode: re-encoding the returned
// fields reproduces the input string.
func Decode(qr string) ([]Field, error) {
	// The checksum covers everything up to and including its own tag+length,
	// which is the whole string minus the final 4 hex digits.
	if len(qr) < 8 {
		return nil, fmt.Errorf("%w: too short", ErrMalformed)
	}
	if want := crc.Checksum(qr[:len(qr)-4]); want != qr[len(qr)-4:] {
		return nil, ErrBadChecksum
	}

	fields, err := parseFields(qr, true)
	if err != nil {
		return nil, err
	}
	last := fields[len(fields)-1]
	if last.Tag != tagCRC {
		return nil, fmt.Errorf("%w: payload does not end with a checksum field", ErrMalformed)
	}
	return fields, nil
}

func parseFields(s string, top bool) ([]Field, error) {
	runes := []rune(s)
	var fields []Field
	i := 0
	for i < len(runes) {
		if len(runes)-i < 4 {
			return nil, fmt.Errorf("%w: truncated field header at offset %d", ErrMalformed, i)
		}
		tag := string(runes[i : i+2])
		n, err := strconv.Atoi(string(runes[i+2 : i+4]))
		if err != nil {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrMalformed, tag)
		}
		if len(runes)-i-4 < n {
			return nil, fmt.Errorf("%w: tag %s declares %d characters past end of input", ErrMalformed, tag, n)
		}
		f := Field{Tag: tag, Value: string(runes[i+4 : i+4+n])}
		if top && nestedTags[tag] {
			subs, err := parseFields(f.Value, false)
			if err != nil {
				return nil, err
			}
			f.Subs = subs
			f.Value = ""
		}
		fields = append(fields, f)
		i += 4 + n
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	return fields, nil
}
