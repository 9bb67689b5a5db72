// Package keys converts push key material between the URL-safe base64
// form push services hand out and the raw bytes / standard base64 the
// store and dispatcher work with.
package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedKeyMaterial reports key material that is not valid base64
// after URL-safe substitution. Decode failures are loud; truncated bytes
// are never returned.
var ErrMalformedKeyMaterial = errors.New("malformed key material")

var urlSafeReplacer = strings.NewReplacer("-", "+", "_", "/")

// DecodeKey decodes a URL-safe base64 string, tolerating missing padding.
func DecodeKey(s string) ([]byte, error) {
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.StdEncoding.DecodeString(urlSafeReplacer.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyMaterial, err)
	}
	return raw, nil
}

// EncodeKey encodes raw key bytes with the standard base64 alphabet,
// the form stored alongside the subscription endpoint.
func EncodeKey(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
