// Package idgen generates identifiers for tasks, accounts and owners.
package idgen

import (
	"crypto/sha256"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ShortIDLength is the length of the display handle returned by ShortID.
const ShortIDLength = 6

// ownerNamespace scopes owner ids derived from account UIDs.
var ownerNamespace = uuid.MustParse("7f1e8a52-3c1d-4e0b-9a57-2d6c4b8f90e1")

// NewTaskID returns a fresh random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// NewAccountID returns a fresh random account UID.
func NewAccountID() string {
	return uuid.NewString()
}

// OwnerID derives the task owner identifier from an account UID. The UID is
// hashed with SHA-256 and folded into a name-based UUID, so the result is
// stable for a given account and never exposes the raw UID.
func OwnerID(accountUID string) string {
	sum := sha256.Sum256([]byte(accountUID))
	return uuid.NewSHA1(ownerNamespace, sum[:]).String()
}

// ShortID returns a short base36 handle for an id, used by the CLI so users
// don't have to type full UUIDs.
func ShortID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return EncodeBase36(sum[:5], ShortIDLength)
}

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	// Build the string in reverse
	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	// Keep least significant digits
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}
