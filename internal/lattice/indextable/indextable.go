// Package indextable manages the dynamic per-key index tables and the
// global key<->tableName bijection that names them (spec §4.5, component
// G).
package indextable

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/hash"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store"
)

// Manager provisions and retires dynamic index tables.
type Manager struct {
	repo store.Repository
}

func New(repo store.Repository) *Manager {
	return &Manager{repo: repo}
}

// EnsureIndexTable returns the physical table name for key, creating the
// mapping row and the table itself if neither exists yet. Two concurrent
// callers racing on the same key are resolved by retrying the read after a
// unique-constraint conflict on the insert (spec §4.5, §5, §9).
func (m *Manager) EnsureIndexTable(ctx context.Context, key string) (string, error) {
	if mapping, err := m.repo.GetIndexTableMapping(ctx, key); err != nil {
		return "", err
	} else if mapping != nil {
		return mapping.TableName, nil
	}

	tableName := hash.IndexTableName(key)

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	var resolved string
	op := func() error {
		if err := m.repo.CreateIndexTableMapping(ctx, key, tableName); err != nil {
			if e, ok := errs.Of(err); ok && e.Kind == errs.Conflict {
				mapping, getErr := m.repo.GetIndexTableMapping(ctx, key)
				if getErr != nil {
					return getErr
				}
				if mapping == nil {
					// Lost the race but the winner's row isn't visible yet; retry.
					return err
				}
				resolved = mapping.TableName
				return nil
			}
			return backoff.Permanent(err)
		}
		resolved = tableName
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}

	if err := m.repo.EnsureIndexTableSchema(ctx, resolved); err != nil {
		return "", err
	}

	return resolved, nil
}

// DropIndexTable removes the mapping and the physical table. It is a no-op
// if the mapping does not exist.
func (m *Manager) DropIndexTable(ctx context.Context, key string) error {
	mapping, err := m.repo.GetIndexTableMapping(ctx, key)
	if err != nil {
		return err
	}
	if mapping == nil {
		return nil
	}
	if err := m.repo.DeleteIndexTableMapping(ctx, key); err != nil {
		return err
	}
	return m.repo.DropIndexTableSchema(ctx, mapping.TableName)
}

// PurgeDocument deletes a document's rows from every dynamic index table
// that currently exists, regardless of which keys the document itself
// carries (spec §3: "When a document is deleted, all rows in every dynamic
// table with that documentId MUST be purged").
func (m *Manager) PurgeDocument(ctx context.Context, documentID string) error {
	mappings, err := m.repo.ListIndexTableMappings(ctx)
	if err != nil {
		return err
	}
	for _, mapping := range mappings {
		if err := m.repo.DeleteIndexEntriesForDocument(ctx, mapping.TableName, documentID); err != nil {
			return err
		}
	}
	return nil
}

// InsertEntries writes one row per flattened entry for an indexable key,
// using each entry's caller-supplied ID as the row's primary key.
func (m *Manager) InsertEntries(ctx context.Context, tableName, documentID string, entries []IndexedValue) error {
	rows := make([]model.IndexTableEntry, len(entries))
	now := time.Now().UTC()
	for i, e := range entries {
		rows[i] = model.IndexTableEntry{
			ID:         e.ID,
			DocumentID: documentID,
			Position:   e.Position,
			Value:      e.Value,
			CreatedUtc: now,
		}
	}
	return m.repo.InsertIndexEntries(ctx, tableName, rows)
}

// IndexedValue is the subset of a flattened value the index-table manager
// needs to persist a row: an already-minted row id, optional array
// position, and the string value.
type IndexedValue struct {
	ID       string
	Position *int
	Value    string
}
