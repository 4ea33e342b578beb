package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the hash decoder with arbitrary field values.
// Goal: no panics; malformed records return ErrCorrupt or ErrNotFound.
func FuzzSessionDecode(f *testing.F) {
	f.Add("sid-1", "foundation", "acct-1", "read write", "1", "1700000000000", "1700003600000", "0")
	f.Add("", "", "", "", "", "", "", "")
	f.Add("sid-2", "bogus", "acct", "", "0", "x", "-5", "1")
	f.Add("sid-3", "email-code", "acct", "", "18446744073709551615", "1", "99999999999999999999", "")

	f.Fuzz(func(t *testing.T, id, kind, account, scopes, ver, created, axp, rxp string) {
		m := map[string]string{
			fieldID:        id,
			fieldKind:      kind,
			fieldAccount:   account,
			fieldScopes:    scopes,
			fieldVersion:   ver,
			fieldCreated:   created,
			fieldAccessExp: axp,
			fieldRefreshEx: rxp,
		}
		sess, err := decode(m)
		if err != nil {
			return
		}

		// A decoded record must survive a round trip through the hash layout.
		flat := make(map[string]string)
		for k, v := range fields(sess) {
			flat[k] = v.(string)
		}
		again, err := decode(flat)
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if again.Version != sess.Version || again.ID != sess.ID {
			t.Fatalf("round trip mismatch")
		}
		_ = again.ExpiresAt().After(time.Time{})
	})
}
