// Defines the content-addressed handle reference format.

package playback

import (
	"encoding/base32"
	"errors"
	"strings"
)

// Ref is a content-addressed handle reference in format "sha256:<BASE32>-<size>".
type Ref string

const (
	refPrefix = "sha256:"
	urlScheme = "blob:"
)

// base32Enc uses the base32 "Extended Hex" alphabet (0-9A-V), which sorts like
// ASCII and is safe on case-insensitive filesystems.
var base32Enc = base32.HexEncoding.WithPadding(base32.NoPadding)

var errInvalidRef = errors.New("invalid handle ref")

// Validate checks the reference format: "sha256:" then 52 uppercase base32 hex
// characters, "-", and the decimal size.
func (r Ref) Validate() error {
	if len(r) < 61 || r[:7] != refPrefix || r[59] != '-' {
		return errInvalidRef
	}
	for i := 7; i < 59; i++ {
		if !isBase32HexChar(r[i]) {
			return errInvalidRef
		}
	}
	for i := 60; i < len(r); i++ {
		if r[i] < '0' || r[i] > '9' {
			return errInvalidRef
		}
	}
	return nil
}

// URL returns the locally dereferenceable "blob:" URL of the handle.
func (r Ref) URL() string {
	return urlScheme + string(r)
}

// ParseURL returns the Ref embedded in a "blob:" URL. A bare ref is accepted too.
func ParseURL(s string) (Ref, error) {
	r := Ref(strings.TrimPrefix(s, urlScheme))
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

func isBase32HexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'V')
}
