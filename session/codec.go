package session

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrCorrupt is returned when a stored hash is missing required fields.
var ErrCorrupt = errors.New("session record corrupt")

const (
	fieldID        = "id"
	fieldKind      = "kind"
	fieldAccount   = "account"
	fieldApp       = "app"
	fieldScopes    = "scopes"
	fieldCreated   = "created"
	fieldVersion   = "ver"
	fieldAccessExp = "axp"
	fieldRefreshEx = "rxp"
	fieldRefresh   = "rh"
	fieldVerified  = "verified"
	fieldCode      = "code"
	fieldRedirect  = "redirect"
	fieldAction    = "action"
)

// fields flattens sess into the hash layout. Optional fields are always
// written so a rewrite never leaves stale values behind.
func fields(sess *Session) map[string]interface{} {
	verified := "0"
	if sess.Verified {
		verified = "1"
	}
	return map[string]interface{}{
		fieldID:        sess.ID,
		fieldKind:      string(sess.Kind),
		fieldAccount:   sess.AccountID,
		fieldApp:       sess.AppID,
		fieldScopes:    strings.Join(sess.Scopes, " "),
		fieldCreated:   formatMillis(sess.CreatedAt),
		fieldVersion:   strconv.FormatUint(sess.Version, 10),
		fieldAccessExp: formatMillis(sess.AccessExpiresAt),
		fieldRefreshEx: formatMillis(sess.RefreshExpiresAt),
		fieldRefresh:   sess.RefreshHash,
		fieldVerified:  verified,
		fieldCode:      sess.CodeHash,
		fieldRedirect:  sess.Redirect,
		fieldAction:    sess.Action,
	}
}

// decode rebuilds a Session from HGETALL output.
func decode(m map[string]string) (*Session, error) {
	if len(m) == 0 {
		return nil, ErrNotFound
	}

	id := m[fieldID]
	kind := Kind(m[fieldKind])
	if id == "" || !kind.Valid() || m[fieldAccount] == "" {
		return nil, ErrCorrupt
	}

	version, err := strconv.ParseUint(m[fieldVersion], 10, 64)
	if err != nil || version == 0 {
		return nil, ErrCorrupt
	}
	created, err := parseMillis(m[fieldCreated])
	if err != nil {
		return nil, ErrCorrupt
	}
	axp, err := parseMillis(m[fieldAccessExp])
	if err != nil || axp.IsZero() {
		return nil, ErrCorrupt
	}
	rxp, err := parseMillis(m[fieldRefreshEx])
	if err != nil {
		return nil, ErrCorrupt
	}

	var scopes []string
	if raw := m[fieldScopes]; raw != "" {
		scopes = strings.Fields(raw)
	}

	return &Session{
		ID:               id,
		Kind:             kind,
		AccountID:        m[fieldAccount],
		AppID:            m[fieldApp],
		Scopes:           scopes,
		CreatedAt:        created,
		Version:          version,
		AccessExpiresAt:  axp,
		RefreshExpiresAt: rxp,
		RefreshHash:      m[fieldRefresh],
		Verified:         m[fieldVerified] == "1",
		CodeHash:         m[fieldCode],
		Redirect:         m[fieldRedirect],
		Action:           m[fieldAction],
	}, nil
}

// decodeFlat decodes the flat key/value array a Lua HGETALL returns.
func decodeFlat(raw []interface{}) (*Session, error) {
	if len(raw)%2 != 0 {
		return nil, ErrCorrupt
	}
	m := make(map[string]string, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		k, ok1 := raw[i].(string)
		v, ok2 := raw[i+1].(string)
		if !ok1 || !ok2 {
			return nil, ErrCorrupt
		}
		m[k] = v
	}
	return decode(m)
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, ErrCorrupt
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}
