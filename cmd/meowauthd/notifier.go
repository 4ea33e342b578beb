package main

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/MrEthical07/meowauth"
)

// outboxMessage is one notification parked for a dev client to read.
type outboxMessage struct {
	Purpose meowauth.Purpose  `json:"purpose"`
	Data    map[string]string `json:"data"`
}

// outbox stands in for mail delivery. It keeps the latest message per
// account and purpose; the log line carries neither the code nor the token.
type outbox struct {
	logger *slog.Logger

	mu       sync.Mutex
	messages map[string]map[meowauth.Purpose]outboxMessage
}

func newOutbox(logger *slog.Logger) *outbox {
	return &outbox{logger: logger, messages: map[string]map[meowauth.Purpose]outboxMessage{}}
}

func (o *outbox) Send(ctx context.Context, acct meowauth.Account, purpose meowauth.Purpose, data map[string]string) error {
	key := strings.ToLower(acct.Username)
	o.mu.Lock()
	byPurpose := o.messages[key]
	if byPurpose == nil {
		byPurpose = map[meowauth.Purpose]outboxMessage{}
		o.messages[key] = byPurpose
	}
	byPurpose[purpose] = outboxMessage{Purpose: purpose, Data: maps.Clone(data)}
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "notification queued", "account_id", acct.ID, "purpose", string(purpose))
	return nil
}

// Messages returns the parked messages of username.
func (o *outbox) Messages(username string) []outboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	byPurpose := o.messages[strings.ToLower(username)]
	out := make([]outboxMessage, 0, len(byPurpose))
	for _, m := range byPurpose {
		out = append(out, m)
	}
	return out
}
