package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/meowauth/internal"
)

var (
	// ErrNotFound is returned for sessions that are missing or past expiry.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned by Rotate when the refresh window has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrReuseDetected is returned when a superseded refresh token is presented.
	// The session has already been torn down when this is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRefreshMismatch is returned for a refresh digest the session never issued.
	ErrRefreshMismatch = errors.New("refresh digest mismatch")
	// ErrNotRotating is returned when Rotate targets a kind without a refresh window.
	ErrNotRotating = errors.New("session kind does not rotate")
	// ErrCodeTaken is returned by Create when another live session already
	// owns the code. The caller draws a new code.
	ErrCodeTaken = errors.New("session code already in use")
	// ErrRedisUnavailable wraps transport and script failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	defaultPrefix      = "ms"
	defaultHistorySize = 16
	defaultGrace       = 10 * time.Minute
	sweepBatch         = 256
	updateRetries      = 3
)

// teardownLua removes a session hash, its history and every index entry.
// It returns 1 when the hash existed.
const teardownLua = `
local function teardown(p, sid)
  local skey = p .. ":s:" .. sid
  local f = redis.call("HMGET", skey, "account", "app", "code")
  local existed = redis.call("DEL", skey)
  redis.call("DEL", p .. ":h:" .. sid)
  if f[1] then
    redis.call("SREM", p .. ":a:" .. f[1], sid)
  end
  if f[2] and f[2] ~= "" then
    redis.call("SREM", p .. ":p:" .. f[2], sid)
  end
  if f[3] and f[3] ~= "" then
    local ckey = p .. ":c:" .. f[3]
    if redis.call("GET", ckey) == sid then
      redis.call("DEL", ckey)
    end
  end
  redis.call("ZREM", p .. ":x", sid)
  return existed
end
`

var consumeScript = redis.NewScript(teardownLua + `
return teardown(ARGV[1], ARGV[2])
`)

const (
	rotateNotFound    int64 = 0
	rotateExpired     int64 = 1
	rotateReused      int64 = 2
	rotateRotated     int64 = 3
	rotateMismatch    int64 = 4
	rotateNotRotating int64 = 5
)

var rotateScript = redis.NewScript(teardownLua + `
local p = ARGV[1]
local sid = ARGV[2]
local presented = ARGV[3]
local pver = tonumber(ARGV[4])

if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end

local f = redis.call("HMGET", KEYS[1], "rh", "ver", "rxp", "kind")
local base
if f[4] == "foundation" then
  base = 8
elseif f[4] == "oauth-full" then
  base = 11
else
  return {5}
end

local rxp = tonumber(f[3] or "0") or 0
if rxp == 0 then
  return {5}
end
if rxp <= tonumber(ARGV[6]) then
  teardown(p, sid)
  return {1}
end

local ver = tonumber(f[2] or "0") or 0
if f[1] and f[1] == presented and ver == pver then
  redis.call("HSET", KEYS[1], "rh", ARGV[5], "ver", tostring(ver + 1), "axp", ARGV[base], "rxp", ARGV[base + 1])
  redis.call("LPUSH", KEYS[2], f[1])
  redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[7]) - 1)
  redis.call("PEXPIRE", KEYS[1], ARGV[base + 2])
  redis.call("PEXPIRE", KEYS[2], ARGV[base + 2])
  redis.call("ZADD", p .. ":x", ARGV[base + 1], sid)
  return {3, redis.call("HGETALL", KEYS[1])}
end

if pver < ver then
  teardown(p, sid)
  return {2}
end
local hist = redis.call("LRANGE", KEYS[2], 0, -1)
for _, h in ipairs(hist) do
  if h == presented then
    teardown(p, sid)
    return {2}
  end
end
return {4}
`)

const (
	lookupNotFound int64 = 0
	lookupCurrent  int64 = 1
	lookupReused   int64 = 2
	lookupUnknown  int64 = 3
)

var findByRefreshScript = redis.NewScript(teardownLua + `
local p = ARGV[1]
local sid = ARGV[2]
local presented = ARGV[3]
local pver = tonumber(ARGV[4])

if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end

local f = redis.call("HMGET", KEYS[1], "rh", "ver")
local ver = tonumber(f[2] or "0") or 0
if f[1] and f[1] == presented and ver == pver then
  return {1, redis.call("HGETALL", KEYS[1])}
end
if pver < ver then
  teardown(p, sid)
  return {2}
end
local hist = redis.call("LRANGE", KEYS[2], 0, -1)
for _, h in ipairs(hist) do
  if h == presented then
    teardown(p, sid)
    return {2}
  end
end
return {3}
`)

var markVerifiedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "verified") == "1" then
  return 2
end
redis.call("HSET", KEYS[1], "verified", "1")
return 1
`)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key. Defaults to "ms".
	Prefix string
	// HistorySize bounds the superseded refresh digests kept per session.
	HistorySize int
	// Policy is the lifetime table. Defaults to DefaultPolicy.
	Policy Policy
	// Grace is added to the Redis TTL beyond the logical expiry so the sweep
	// can still resolve index entries for a dead record.
	Grace time.Duration
	Now   func() time.Time
}

// Store persists sessions as Redis hashes with account, app, code and expiry
// indexes. Every mutation that must be atomic runs as a single Lua script.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	historySize int
	policy      Policy
	grace       time.Duration
	now         func() time.Time
}

// NewStore returns a Store backed by client.
func NewStore(client redis.UniversalClient, opts Options) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		redis:       client,
		prefix:      opts.Prefix,
		historySize: opts.HistorySize,
		policy:      opts.Policy.Clone(),
		grace:       opts.Grace,
		now:         opts.Now,
	}, nil
}

// Policy returns a copy of the lifetime table in use.
func (s *Store) Policy() Policy {
	return s.policy.Clone()
}

func (s *Store) sessionKey(sid string) string   { return s.prefix + ":s:" + sid }
func (s *Store) historyKey(sid string) string   { return s.prefix + ":h:" + sid }
func (s *Store) accountKey(id string) string    { return s.prefix + ":a:" + id }
func (s *Store) appKey(id string) string        { return s.prefix + ":p:" + id }
func (s *Store) codeKey(codeHash string) string { return s.prefix + ":c:" + codeHash }
func (s *Store) expiryKey() string              { return s.prefix + ":x" }

// Create persists a new session at version 1 with lifetimes from the policy.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if p.AccountID == "" {
		return nil, errors.New("session requires an account id")
	}
	if p.Kind.OAuth() && p.AppID == "" {
		return nil, errors.New("oauth session requires an app id")
	}
	lt, err := s.policy.resolve(p.Kind, p.TTL)
	if err != nil {
		return nil, err
	}
	if lt.Refresh > 0 && p.RefreshHash == "" {
		return nil, errors.New("rotating session requires a refresh digest")
	}

	now := s.now()
	sess := &Session{
		ID:              p.ID,
		Kind:            p.Kind,
		AccountID:       p.AccountID,
		AppID:           p.AppID,
		Scopes:          append([]string(nil), p.Scopes...),
		CreatedAt:       now,
		Version:         1,
		AccessExpiresAt: now.Add(lt.Access),
		RefreshHash:     p.RefreshHash,
		Verified:        p.Verified,
		CodeHash:        p.CodeHash,
		Redirect:        p.Redirect,
		Action:          p.Action,
	}
	if sess.ID == "" {
		sess.ID = internal.NewID()
	}
	if lt.Refresh > 0 {
		sess.RefreshExpiresAt = now.Add(lt.Refresh)
	}

	if sess.CodeHash != "" {
		claimed, err := s.redis.SetNX(ctx, s.codeKey(sess.CodeHash), sess.ID, lt.Access).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if !claimed {
			return nil, ErrCodeTaken
		}
	}

	expiresAt := sess.ExpiresAt()
	key := s.sessionKey(sess.ID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields(sess))
		pipe.PExpire(ctx, key, expiresAt.Sub(now)+s.grace)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.ID)
		if sess.AppID != "" {
			pipe.SAdd(ctx, s.appKey(sess.AppID), sess.ID)
		}
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{
			Score:  float64(expiresAt.UnixMilli()),
			Member: sess.ID,
		})
		return nil
	})
	if err != nil {
		if sess.CodeHash != "" {
			_ = s.redis.Del(ctx, s.codeKey(sess.CodeHash)).Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Find loads a live session. Records past their expiry are removed on read
// and reported as ErrNotFound.
func (s *Store) Find(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, ErrNotFound
	}

	var (
		hashCmd *redis.MapStringStringCmd
		histCmd *redis.StringSliceCmd
	)
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, s.sessionKey(sid))
		histCmd = pipe.LRange(ctx, s.historyKey(sid), 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := decode(hashCmd.Val())
	if err != nil {
		return nil, err
	}
	if !s.now().Before(sess.ExpiresAt()) {
		_, _ = s.Consume(ctx, sid)
		return nil, ErrNotFound
	}
	sess.History = histCmd.Val()
	return sess, nil
}

// FindByCode resolves a session through its code index. The code must belong
// to a session of the given kind.
func (s *Store) FindByCode(ctx context.Context, kind Kind, codeHash string) (*Session, error) {
	if codeHash == "" {
		return nil, ErrNotFound
	}
	sid, err := s.redis.Get(ctx, s.codeKey(codeHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := s.Find(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess.Kind != kind || sess.CodeHash != codeHash {
		return nil, ErrNotFound
	}
	return sess, nil
}

// FindByRefresh classifies digest against the session's current and
// superseded refresh digests. A reused digest tears the session down in the
// same script and returns RefreshReused with a nil session.
func (s *Store) FindByRefresh(ctx context.Context, sid, digest string, version uint64) (*Session, RefreshStatus, error) {
	res, err := findByRefreshScript.Run(ctx, s.redis,
		[]string{s.sessionKey(sid), s.historyKey(sid)},
		s.prefix, sid, digest, strconv.FormatUint(version, 10),
	).Slice()
	if err != nil {
		return nil, RefreshUnknown, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	code, err := scriptStatus(res)
	if err != nil {
		return nil, RefreshUnknown, err
	}

	switch code {
	case lookupNotFound:
		return nil, RefreshUnknown, ErrNotFound
	case lookupCurrent:
		sess, err := decodeScriptSession(res)
		if err != nil {
			return nil, RefreshUnknown, err
		}
		if !s.now().Before(sess.ExpiresAt()) {
			_, _ = s.Consume(ctx, sid)
			return nil, RefreshUnknown, ErrNotFound
		}
		return sess, RefreshCurrent, nil
	case lookupReused:
		return nil, RefreshReused, nil
	case lookupUnknown:
		return nil, RefreshUnknown, nil
	default:
		return nil, RefreshUnknown, fmt.Errorf("%w: unknown lookup status %d", ErrRedisUnavailable, code)
	}
}

// Rotate atomically swaps the current refresh digest for NextDigest and bumps
// the version, provided PresentedDigest and PresentedVersion are the live pair.
func (s *Store) Rotate(ctx context.Context, p RotateParams) (*Session, error) {
	if p.SID == "" || p.PresentedDigest == "" || p.NextDigest == "" {
		return nil, errors.New("rotate requires sid and digests")
	}
	now := p.Now
	if now.IsZero() {
		now = s.now()
	}

	args := []interface{}{
		s.prefix,
		p.SID,
		p.PresentedDigest,
		strconv.FormatUint(p.PresentedVersion, 10),
		p.NextDigest,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.Itoa(s.historySize),
	}
	for _, kind := range []Kind{KindFoundation, KindOAuthFull} {
		lt := s.policy[kind]
		if p.AccessTTL > 0 {
			lt.Access = p.AccessTTL
		}
		if p.RefreshTTL > 0 {
			lt.Refresh = p.RefreshTTL
		}
		rxp := now.Add(lt.Refresh)
		args = append(args,
			strconv.FormatInt(now.Add(lt.Access).UnixMilli(), 10),
			strconv.FormatInt(rxp.UnixMilli(), 10),
			strconv.FormatInt((lt.Refresh + s.grace).Milliseconds(), 10),
		)
	}

	res, err := rotateScript.Run(ctx, s.redis,
		[]string{s.sessionKey(p.SID), s.historyKey(p.SID)}, args...,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	code, err := scriptStatus(res)
	if err != nil {
		return nil, err
	}

	switch code {
	case rotateRotated:
		return decodeScriptSession(res)
	case rotateNotFound:
		return nil, ErrNotFound
	case rotateExpired:
		return nil, ErrExpired
	case rotateReused:
		return nil, ErrReuseDetected
	case rotateMismatch:
		return nil, ErrRefreshMismatch
	case rotateNotRotating:
		return nil, ErrNotRotating
	default:
		return nil, fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// MarkVerified flips the verified flag from false to true. It returns false
// when the flag was already set.
func (s *Store) MarkVerified(ctx context.Context, sid string) (bool, error) {
	code, err := markVerifiedScript.Run(ctx, s.redis, []string{s.sessionKey(sid)}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch code {
	case 0:
		return false, ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// Update rewrites the mutable attributes of sess: scopes, verified flag,
// redirect and action. It retries on concurrent modification.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	key := s.sessionKey(sess.ID)
	verified := "0"
	if sess.Verified {
		verified = "1"
	}

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldScopes, strings.Join(sess.Scopes, " "),
				fieldVerified, verified,
				fieldRedirect, sess.Redirect,
				fieldAction, sess.Action,
			)
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return fmt.Errorf("%w: update contention", ErrRedisUnavailable)
}

// Consume deletes the session and reports whether this call removed it.
// Exactly one of any number of concurrent callers observes true.
func (s *Store) Consume(ctx context.Context, sid string) (bool, error) {
	if sid == "" {
		return false, nil
	}
	n, err := consumeScript.Run(ctx, s.redis, nil, s.prefix, sid).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sid string) error {
	_, err := s.Consume(ctx, sid)
	return err
}

// DeleteByAccount removes every session owned by accountID.
func (s *Store) DeleteByAccount(ctx context.Context, accountID string) (int, error) {
	return s.deleteIndexed(ctx, s.accountKey(accountID), nil)
}

// DeleteByApp removes every session bound to appID.
func (s *Store) DeleteByApp(ctx context.Context, appID string) (int, error) {
	return s.deleteIndexed(ctx, s.appKey(appID), nil)
}

// DeleteByAccountApp removes the sessions accountID holds for appID.
func (s *Store) DeleteByAccountApp(ctx context.Context, accountID, appID string) (int, error) {
	ids, err := s.members(ctx, s.accountKey(accountID))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, sid := range ids {
			cmds[i] = pipe.HGet(ctx, s.sessionKey(sid), fieldApp)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	match := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() == appID {
			match = append(match, ids[i])
		}
	}
	return s.deleteIndexed(ctx, "", match)
}

// ListByAccount returns the live sessions owned by accountID. Stale index
// entries are pruned as a side effect.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]*Session, error) {
	setKey := s.accountKey(accountID)
	ids, err := s.members(ctx, setKey)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, sid := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.sessionKey(sid))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.now()
	out := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		sess, decErr := decode(cmd.Val())
		if decErr != nil {
			stale = append(stale, ids[i])
			continue
		}
		if !now.Before(sess.ExpiresAt()) {
			continue
		}
		out = append(out, sess)
	}
	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, setKey, stale...).Err()
	}
	return out, nil
}

// Sweep removes every session whose expiry is at or before now, in batches.
// It returns the number of expiry entries processed.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	total := 0
	for {
		ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   max,
			Count: sweepBatch,
		}).Result()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, sid := range ids {
			if _, err := s.Consume(ctx, sid); err != nil {
				return total, err
			}
			total++
		}
		if len(ids) < sweepBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Ping checks Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) members(ctx context.Context, setKey string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// deleteIndexed tears down the members of setKey, or ids when setKey is empty.
func (s *Store) deleteIndexed(ctx context.Context, setKey string, ids []string) (int, error) {
	if setKey != "" {
		var err error
		ids, err = s.members(ctx, setKey)
		if err != nil {
			return 0, err
		}
	}

	removed := 0
	for _, sid := range ids {
		ok, err := s.Consume(ctx, sid)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if setKey != "" {
		if err := s.redis.Del(ctx, setKey).Err(); err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return removed, nil
}

func scriptStatus(res []interface{}) (int64, error) {
	if len(res) == 0 {
		return 0, fmt.Errorf("%w: empty script response", ErrRedisUnavailable)
	}
	code, ok := res[0].(int64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid script status", ErrRedisUnavailable)
	}
	return code, nil
}

func decodeScriptSession(res []interface{}) (*Session, error) {
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: missing session payload", ErrRedisUnavailable)
	}
	flat, ok := res[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid session payload", ErrRedisUnavailable)
	}
	return decodeFlat(flat)
}
