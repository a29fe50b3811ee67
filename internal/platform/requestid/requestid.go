// Package requestid mints the opaque identifiers carried through
// records and every derived version as provenance.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
)

func New() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
