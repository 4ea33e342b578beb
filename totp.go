package meowauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpGenerator implements RFC 6238 over base32 secrets as stored on the
// totp auth method.
type totpGenerator struct {
	config TOTPConfig
}

func newTOTPGenerator(cfg TOTPConfig) *totpGenerator {
	return &totpGenerator{config: cfg}
}

// NewSecret returns a fresh 160-bit secret, base32 without padding.
func (g *totpGenerator) NewSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return totpEncoding.EncodeToString(raw), nil
}

// ProvisionURI renders the otpauth:// URI consumed by authenticator apps.
func (g *totpGenerator) ProvisionURI(secret, username string) string {
	issuer := g.config.Issuer
	label := url.PathEscape(issuer + ":" + username)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(int(g.config.Period/time.Second)))
	v.Set("digits", strconv.Itoa(g.config.Digits))
	v.Set("algorithm", strings.ToUpper(g.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks code against the steps within ±Skew of now and returns the
// matching time step.
func (g *totpGenerator) Verify(secret, code string, now time.Time) (bool, int64, error) {
	code = strings.TrimSpace(code)
	if len(code) != g.config.Digits || !isDigits(code) {
		return false, 0, nil
	}
	key, err := decodeTOTPSecret(secret)
	if err != nil {
		return false, 0, err
	}

	period := int64(g.config.Period / time.Second)
	base := now.Unix() / period
	for step := -g.config.Skew; step <= g.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		want, err := hotp(key, counter, g.config.Digits, g.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

// Code returns the code for the time step containing now.
func (g *totpGenerator) Code(secret string, now time.Time) (string, error) {
	key, err := decodeTOTPSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(key, now.Unix()/int64(g.config.Period/time.Second), g.config.Digits, g.config.Algorithm)
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	key, err := totpEncoding.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil || len(key) == 0 {
		return nil, errors.New("invalid totp secret")
	}
	return key, nil
}

func hotp(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
