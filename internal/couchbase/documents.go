package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when an insert hits an existing document.
	ErrExists = errors.New("document already exists")
)

// DocumentManager handles document operations on the bucket's default collection.
type DocumentManager struct {
	col *gocb.Collection
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(bucket *gocb.Bucket) *DocumentManager {
	return &DocumentManager{col: bucket.DefaultCollection()}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return ErrNotFound
	case errors.Is(err, gocb.ErrDocumentExists):
		return ErrExists
	}
	return err
}

// Get decodes document id into out.
func (dm *DocumentManager) Get(ctx context.Context, id string, out any) error {
	res, err := dm.col.Get(id, &gocb.GetOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", id, translate(err))
	}
	if err := res.Content(out); err != nil {
		return fmt.Errorf("failed to parse document %s: %w", id, err)
	}
	return nil
}

// Upsert stores data under id. A zero ttl keeps the document forever.
func (dm *DocumentManager) Upsert(ctx context.Context, id string, data any, ttl time.Duration) error {
	if _, err := dm.col.Upsert(id, data, &gocb.UpsertOptions{Context: ctx, Expiry: ttl}); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", id, err)
	}
	return nil
}

// Insert stores data under id only if it does not exist yet.
func (dm *DocumentManager) Insert(ctx context.Context, id string, data any, ttl time.Duration) error {
	if _, err := dm.col.Insert(id, data, &gocb.InsertOptions{Context: ctx, Expiry: ttl}); err != nil {
		return fmt.Errorf("failed to insert document %s: %w", id, translate(err))
	}
	return nil
}

// Remove deletes document id. A missing document is not an error.
func (dm *DocumentManager) Remove(ctx context.Context, id string) error {
	if _, err := dm.col.Remove(id, &gocb.RemoveOptions{Context: ctx}); err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil
		}
		return fmt.Errorf("failed to remove document %s: %w", id, err)
	}
	return nil
}

// Increment atomically adds one to counter id, creating it at 1.
func (dm *DocumentManager) Increment(ctx context.Context, id string) (uint64, error) {
	res, err := dm.col.Binary().Increment(id, &gocb.IncrementOptions{Context: ctx, Initial: 1, Delta: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", id, err)
	}
	return res.Content(), nil
}

// Counter reads counter id. A missing counter reads as zero.
func (dm *DocumentManager) Counter(ctx context.Context, id string) (uint64, error) {
	var n uint64
	if err := dm.Get(ctx, id, &n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
