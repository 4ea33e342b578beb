package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	minLogN       uint8  = 10
	maxLogN       uint8  = 20
	minBlockSize  uint32 = 1
	minParallel   uint32 = 1
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	scryptID             = "scrypt"
)

// Config holds the scrypt cost parameters used for new hashes.
//
// LogN is the base-2 logarithm of the CPU/memory cost N.
type Config struct {
	LogN        uint8
	BlockSize   uint32
	Parallelism uint32
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production scrypt parameters (N=2^15, r=8, p=1).
func DefaultConfig() Config {
	return Config{
		LogN:        15,
		BlockSize:   8,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Scrypt hashes and verifies passwords in PHC string format.
type Scrypt struct {
	config Config
}

type parsedPHC struct {
	logN      uint8
	blockSize uint32
	parallel  uint32
	salt      []byte
	hash      []byte
}

// NewScrypt validates cfg and returns a hasher bound to it.
func NewScrypt(cfg Config) (*Scrypt, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Scrypt{config: cfg}, nil
}

// Hash derives a new PHC-encoded scrypt hash with a random salt.
func (s *Scrypt) Hash(password string) (string, error) {
	salt := make([]byte, s.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, err := scrypt.Key(
		[]byte(password),
		salt,
		1<<s.config.LogN,
		int(s.config.BlockSize),
		int(s.config.Parallelism),
		int(s.config.KeyLength),
	)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"$%s$ln=%d,r=%d,p=%d$%s$%s",
		scryptID,
		s.config.LogN,
		s.config.BlockSize,
		s.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash.
func (s *Scrypt) Verify(password string, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed, err := scrypt.Key(
		[]byte(password),
		parsed.salt,
		1<<parsed.logN,
		int(parsed.blockSize),
		int(parsed.parallel),
		len(parsed.hash),
	)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the configured ones.
func (s *Scrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if s.config.LogN > parsed.logN {
		return true, nil
	}
	if s.config.BlockSize > parsed.blockSize {
		return true, nil
	}
	if s.config.Parallelism > parsed.parallel {
		return true, nil
	}
	if int(s.config.KeyLength) != len(parsed.hash) {
		return true, nil
	}

	return false, nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != scryptID {
		return nil, ErrMalformedHash
	}

	out, err := parseParams(parts[2])
	if err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, ErrMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(hash) < int(minKeyLength) {
		return nil, ErrMalformedHash
	}

	out.salt = salt
	out.hash = hash
	return out, nil
}

func parseParams(part string) (*parsedPHC, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, ErrMalformedHash
	}

	var (
		logNSet, blockSet, parallelSet bool
		params                         parsedPHC
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrMalformedHash
		}

		switch kv[0] {
		case "ln":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || uint8(v) < minLogN || uint8(v) > maxLogN {
				return nil, ErrMalformedHash
			}
			params.logN = uint8(v)
			logNSet = true
		case "r":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || uint32(v) < minBlockSize {
				return nil, ErrMalformedHash
			}
			params.blockSize = uint32(v)
			blockSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || uint32(v) < minParallel {
				return nil, ErrMalformedHash
			}
			params.parallel = uint32(v)
			parallelSet = true
		default:
			return nil, ErrMalformedHash
		}
	}

	if !logNSet || !blockSet || !parallelSet {
		return nil, ErrMalformedHash
	}

	return &params, nil
}

func validateConfig(cfg Config) error {
	if cfg.LogN < minLogN || cfg.LogN > maxLogN {
		return errors.New("password LogN must be between 10 and 20")
	}
	if cfg.BlockSize < minBlockSize {
		return errors.New("password block size must be >= 1")
	}
	if cfg.Parallelism < minParallel {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
