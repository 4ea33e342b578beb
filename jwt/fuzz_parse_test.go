package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

// FuzzParseSessionToken exercises the parser with arbitrary token strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzParseSessionToken(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	mgr, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		MaxFutureIAT:  10 * time.Minute,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}

	validToken, err := mgr.CreateSessionToken("sid1", TypeAccess, 1)
	if err != nil {
		f.Fatal(err)
	}
	standalone, _, _, err := mgr.CreateStandalone("totp-pending", "acct", time.Minute, nil)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(validToken)
	f.Add(standalone)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJzaWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseSessionToken(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("ParseSessionToken returned nil claims without error")
		}
		if claims.SessionID == "" || claims.Version == 0 {
			t.Fatal("ParseSessionToken accepted claims without sid or version")
		}
	})
}
