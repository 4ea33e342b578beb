package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	appSecretSize = 32
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewID returns a random UUIDv4 string used for sessions, accounts and apps.
func NewID() string {
	return uuid.NewString()
}

// NewAppSecret returns a base64url shared secret for an OAuth application.
func NewAppSecret() (string, error) {
	var raw [appSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewCode returns n characters drawn uniformly from [A-Z0-9].
func NewCode(n int) (string, error) {
	if n <= 0 || n > 64 {
		return "", errors.New("invalid code length")
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// NewRecoveryCode returns a code formatted as XXXXX-XXXXX.
func NewRecoveryCode() (string, error) {
	raw, err := NewCode(10)
	if err != nil {
		return "", err
	}
	return raw[:5] + "-" + raw[5:], nil
}

// CanonicalCode upper-cases and strips separators and whitespace so that
// user-typed codes compare equal to issued ones.
func CanonicalCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Digest returns the lowercase hex sha256 of value. Tokens and codes are
// only ever stored in this form.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
