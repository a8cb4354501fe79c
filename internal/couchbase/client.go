// Package couchbase wraps the cluster connection, document access and
// per-key locking used by the shared feed cache and the command guard.
package couchbase

import (
	"context"
	"time"
)

// Client represents a Couchbase client that orchestrates all operations
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
	locker      *KeyLocker
}

// NewClient connects and opens the configured bucket.
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg)
	if err != nil {
		return nil, err
	}

	docManager := NewDocumentManager(connManager.GetBucket())

	return &Client{
		connManager: connManager,
		docManager:  docManager,
		locker:      NewKeyLocker(docManager),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

// Get decodes document id into out.
func (c *Client) Get(ctx context.Context, id string, out any) error {
	return c.docManager.Get(ctx, id, out)
}

// Upsert stores data under id with an optional ttl.
func (c *Client) Upsert(ctx context.Context, id string, data any, ttl time.Duration) error {
	return c.docManager.Upsert(ctx, id, data, ttl)
}

// Increment atomically bumps counter id.
func (c *Client) Increment(ctx context.Context, id string) (uint64, error) {
	return c.docManager.Increment(ctx, id)
}

// Counter reads counter id.
func (c *Client) Counter(ctx context.Context, id string) (uint64, error) {
	return c.docManager.Counter(ctx, id)
}

// TryLock takes the cross-instance lock for key.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.locker.TryLock(ctx, key, ttl)
}

// Unlock releases key.
func (c *Client) Unlock(ctx context.Context, key string) error {
	return c.locker.Unlock(ctx, key)
}
