package khqr

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field is one tag-length-value unit. A field with Subs serializes the
// concatenation of its subs as its value; Value is ignored in that case.
type Field struct {
	Tag   string
	Value string
	Subs  []Field
}

// maxFieldLen is the largest value length representable by the 2-digit
// decimal length prefix.
const maxFieldLen = 99

// encode serializes the field as tag + zero-padded 2-digit length + value.
func (f Field) encode() (string, error) {
	v := f.Value
	if len(f.Subs) > 0 {
		var b strings.Builder
		for _, sub := range f.Subs {
			enc, err := sub.encode()
			if err != nil {
				return "", err
			}
			b.WriteString(enc)
		}
		v = b.String()
	}
	n := utf8.RuneCountInString(v)
	if n > maxFieldLen {
		return "", &FieldTooLongError{Field: "tag " + f.Tag, Length: n, Max: maxFieldLen}
	}
	return fmt.Sprintf("%s%02d%s", f.Tag, n, v), nil
}

// encodeFields serializes a field sequence in order.
func encodeFields(fields []Field) (string, error) {
	var b strings.Builder
	for _, f := range fields {
		enc, err := f.encode()
		if err != nil {
			return "", err
		}
		b.WriteString(enc)
	}
	return b.String(), nil
}
