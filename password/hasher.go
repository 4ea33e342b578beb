package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme tags the algorithm that produced a stored credential.
type Scheme string

const (
	// SchemeScrypt is the current scheme for newly set passwords.
	SchemeScrypt Scheme = "scrypt"
	// SchemeBcrypt is accepted for accounts created before the scrypt migration.
	SchemeBcrypt Scheme = "bcrypt"
	// SchemeSHA256 is the oldest accepted scheme: lowercase hex of sha256(password).
	SchemeSHA256 Scheme = "sha256"
)

var (
	// ErrMalformedHash is returned when stored material cannot be parsed for its scheme.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnknownScheme is returned for scheme tags the hasher does not implement.
	ErrUnknownScheme = errors.New("unknown password scheme")
)

// Result is the outcome of a verification.
type Result struct {
	Valid bool
	// NeedsMigration is set on a valid match whose material should be
	// rewritten with the current scheme or parameters.
	NeedsMigration bool
}

// Hasher verifies every supported scheme and hashes with scrypt.
type Hasher struct {
	modern *Scrypt
}

// NewHasher returns a Hasher whose modern scheme uses cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	s, err := NewScrypt(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{modern: s}, nil
}

// Hash returns scrypt material for password together with its scheme tag.
func (h *Hasher) Hash(password string) (Scheme, string, error) {
	encoded, err := h.modern.Hash(password)
	if err != nil {
		return "", "", err
	}
	return SchemeScrypt, encoded, nil
}

// Verify checks presented against stored using the recorded scheme.
// A mismatch is reported as Result{Valid: false} with a nil error; err is
// reserved for material that cannot be interpreted.
func (h *Hasher) Verify(scheme Scheme, stored, presented string) (Result, error) {
	switch scheme {
	case SchemeScrypt:
		ok, err := h.modern.Verify(presented, stored)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, nil
		}
		upgrade, err := h.modern.NeedsUpgrade(stored)
		if err != nil {
			return Result{}, err
		}
		return Result{Valid: true, NeedsMigration: upgrade}, nil
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented))
		switch {
		case err == nil:
			return Result{Valid: true, NeedsMigration: true}, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return Result{}, nil
		default:
			return Result{}, ErrMalformedHash
		}
	case SchemeSHA256:
		want, err := hex.DecodeString(strings.ToLower(stored))
		if err != nil || len(want) != sha256.Size {
			return Result{}, ErrMalformedHash
		}
		got := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(got[:], want) != 1 {
			return Result{}, nil
		}
		return Result{Valid: true, NeedsMigration: true}, nil
	default:
		return Result{}, ErrUnknownScheme
	}
}
