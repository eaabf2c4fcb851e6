// Package idgen mints queue item ids. The base36 hash encoding is adapted
// from the teacher's internal/idgen/hash.go (EncodeBase36, GenerateHashID).
// Run trace ids are minted elsewhere, by internal/auditlog's NewTraceID
// with google/uuid (distinct from content-derived item ids, which must stay
// short and human-typeable in CLI arguments).
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts data to a base36 string of exactly length
// characters, left-padding with zeros or truncating to the least
// significant digits as needed.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewItemID mints an item id of the form "<prefix>-<base36>",
// content-addressed on task text, timestamp (to the nanosecond) and a
// caller-supplied nonce: the same three inputs always yield the same id.
func NewItemID(prefix, task string, timestamp time.Time, nonce int) string {
	content := fmt.Sprintf("%s|%d|%d", task, timestamp.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:4], 6))
}
