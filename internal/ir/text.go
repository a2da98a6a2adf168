package ir

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// validUTF8 reports whether b is well-formed UTF-8. Event text is stored
// exactly as delivered, so bytes that JSON cannot carry are rejected rather
// than replaced with U+FFFD.
func validUTF8(b []byte) bool {
	_, _, err := transform.Bytes(encoding.UTF8Validator, b)
	return err == nil
}

func checkText(field, s string) error {
	if !validUTF8([]byte(s)) {
		return schemaErrorf(field, "", "not valid UTF-8")
	}
	return nil
}
