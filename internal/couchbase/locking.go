package couchbase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const lockPrefix = "lock::"

// lockDocument is stored while a key is held. The expiry on the document
// releases locks left behind by a crashed holder.
type lockDocument struct {
	LockedAt time.Time `json:"lockedAt"`
	LockedBy string    `json:"lockedBy"`
}

// KeyLocker provides per-key exclusive locks shared by every portal instance.
type KeyLocker struct {
	docs  *DocumentManager
	owner string
}

// NewKeyLocker creates a locker writing through docs.
func NewKeyLocker(docs *DocumentManager) *KeyLocker {
	owner, err := os.Hostname()
	if err != nil || owner == "" {
		owner = "hrportal"
	}
	return &KeyLocker{docs: docs, owner: owner}
}

// TryLock takes the lock for key. It reports false when another holder has it.
func (l *KeyLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	doc := lockDocument{LockedAt: time.Now().UTC(), LockedBy: l.owner}
	err := l.docs.Insert(ctx, lockPrefix+key, doc, ttl)
	switch {
	case err == nil:
		log.Debug().Str("key", key).Msg("Lock acquired")
		return true, nil
	case errors.Is(err, ErrExists):
		return false, nil
	}
	return false, fmt.Errorf("failed to create lock document: %w", err)
}

// Unlock releases key.
func (l *KeyLocker) Unlock(ctx context.Context, key string) error {
	if err := l.docs.Remove(ctx, lockPrefix+key); err != nil {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}
	log.Debug().Str("key", key).Msg("Lock released")
	return nil
}
