package transaction

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewReference returns "<prefix>-<16 uppercase hex chars>".
func NewReference(prefix string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(b)), nil
}
