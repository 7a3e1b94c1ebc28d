// Package lock implements named, TTL-based ingestion locks keyed by
// (collectionId, documentName) (spec §4.7, component I).
package lock

import (
	"context"
	"time"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store"
)

// DefaultExpirationSeconds is the TTL used when a collection does not
// declare its own (spec §5: "lock TTL (default 30 s)").
const DefaultExpirationSeconds = 30

// Manager acquires and releases named locks.
type Manager struct {
	repo     store.Repository
	hostname string
}

func New(repo store.Repository, hostname string) *Manager {
	return &Manager{repo: repo, hostname: hostname}
}

// TryAcquire attempts to claim (collectionID, documentName). On a unique
// conflict it inspects the existing lock: if expired, it is reclaimed and
// acquisition retried once; otherwise acquisition fails with
// errs.DocumentLocked carrying the current owner (spec §4.7).
func (m *Manager) TryAcquire(ctx context.Context, collectionID, documentName string, expirationSeconds int) (*model.ObjectLock, error) {
	if expirationSeconds == 0 {
		expirationSeconds = DefaultExpirationSeconds
	}
	l := &model.ObjectLock{
		ID:           id.New(id.Lock),
		CollectionID: collectionID,
		DocumentName: documentName,
		Hostname:     m.hostname,
		CreatedUtc:   time.Now().UTC(),
	}

	err := m.repo.TryAcquireLock(ctx, l)
	if err == nil {
		return l, nil
	}

	e, ok := errs.Of(err)
	if !ok || e.Kind != errs.Conflict {
		return nil, err
	}

	existing, getErr := m.repo.GetLock(ctx, collectionID, documentName)
	if getErr != nil {
		return nil, getErr
	}
	if existing == nil {
		// Lost the race but the winner's row isn't visible yet; the caller's
		// retry (if any) will see it on the next attempt.
		return nil, errs.Conflictf("lock contention on %s/%s", collectionID, documentName)
	}

	if existing.Expired(time.Now().UTC(), expirationSeconds) {
		if delErr := m.repo.DeleteLock(ctx, collectionID, documentName); delErr != nil {
			return nil, delErr
		}
		if retryErr := m.repo.TryAcquireLock(ctx, l); retryErr != nil {
			return nil, retryErr
		}
		return l, nil
	}

	return nil, errs.Locked(collectionID, documentName, existing.Hostname, existing.CreatedUtc.Unix())
}

// Release deletes a lock by id. Failures are the caller's to log; they
// must never replace an ingestion's original error (spec §4.7, §7).
func (m *Manager) Release(ctx context.Context, lockID string) error {
	return m.repo.ReleaseLock(ctx, lockID)
}
