package notification

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Tokens derives the opaque per-user room token shared with the gateway clients.
type Tokens struct {
	secret string
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: secret}
}

func (t *Tokens) Token(userID uint64) string {
	sum := blake2b.Sum256([]byte(strconv.FormatUint(userID, 10) + t.secret))
	return hex.EncodeToString(sum[:])
}
