package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		LogN:        10,
		BlockSize:   8,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestScryptHashAndVerify(t *testing.T) {
	hasher, err := NewScrypt(testConfig())
	if err != nil {
		t.Fatalf("NewScrypt error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$scrypt$ln=10,r=8,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestScryptNeedsUpgrade(t *testing.T) {
	oldHasher, err := NewScrypt(testConfig())
	if err != nil {
		t.Fatalf("NewScrypt(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := testConfig()
	stronger.LogN = 11
	newHasher, err := NewScrypt(stronger)
	if err != nil {
		t.Fatalf("NewScrypt(new) error: %v", err)
	}

	needsUpgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade for weaker cost parameters")
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needsUpgrade {
		t.Fatal("expected no upgrade for current parameters")
	}
}

func TestScryptRejectsMalformedHash(t *testing.T) {
	hasher, err := NewScrypt(testConfig())
	if err != nil {
		t.Fatalf("NewScrypt error: %v", err)
	}

	cases := []string{
		"not-a-phc-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$scrypt$ln=10,r=8$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$scrypt$ln=99,r=8,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$scrypt$ln=10,r=8,p=1$!!$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, tc := range cases {
		if _, err := hasher.Verify("password", tc); err == nil {
			t.Fatalf("expected malformed hash %q to fail", tc)
		}
	}
}

func TestNewScryptRejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LogN = 4
	if _, err := NewScrypt(cfg); err == nil {
		t.Fatal("expected LogN below minimum to be rejected")
	}

	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewScrypt(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
