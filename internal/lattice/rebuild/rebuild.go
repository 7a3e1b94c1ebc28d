// Package rebuild implements the index-maintenance service: dropping and
// creating per-key tables to match a new indexing policy, then repopulating
// them from stored blobs (spec §4.10, component L).
package rebuild

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/flatten"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store"
)

// watchDebounce collapses a burst of blob writes in the same directory
// (e.g. a bulk external drop) into a single rebuild instead of one per file.
const watchDebounce = 2 * time.Second

// Result reports what a rebuild changed (spec §4.10 return shape).
type Result struct {
	IndexesAdded       []string
	IndexesDropped     []string
	DocumentsProcessed int
}

// Service implements Rebuild(collectionId, dropUnusedIndexes).
type Service struct {
	repo    store.Repository
	blobs   *blobstore.Store
	indexes *indextable.Manager
}

func New(repo store.Repository, blobs *blobstore.Store, indexes *indextable.Manager) *Service {
	return &Service{repo: repo, blobs: blobs, indexes: indexes}
}

// Rebuild follows spec §4.10's five-step procedure. It is restartable:
// re-inserting an already-indexed document first deletes its rows in every
// affected table, then inserts fresh ones.
func (s *Service) Rebuild(ctx context.Context, collectionID string, dropUnusedIndexes bool) (*Result, error) {
	collection, err := s.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	target, err := s.targetKeys(ctx, collection)
	if err != nil {
		return nil, err
	}

	current, err := s.currentKeys(ctx, collection.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if dropUnusedIndexes {
		for key := range current {
			if target[key] {
				continue
			}
			mapping, err := s.repo.GetIndexTableMapping(ctx, key)
			if err != nil {
				return nil, err
			}
			if mapping == nil {
				continue
			}
			if _, err := s.repo.DeleteIndexEntriesForCollection(ctx, mapping.TableName, collection.ID); err != nil {
				return nil, err
			}
			result.IndexesDropped = append(result.IndexesDropped, key)

			// Global safety check (spec §4.10 step 3): only drop the table
			// itself once no collection has any rows left in it.
			count, err := s.repo.CountIndexEntries(ctx, mapping.TableName)
			if err != nil {
				return nil, err
			}
			if count == 0 {
				if err := s.indexes.DropIndexTable(ctx, key); err != nil {
					return nil, err
				}
			}
		}
	}

	for key := range target {
		if current[key] {
			continue
		}
		if _, err := s.indexes.EnsureIndexTable(ctx, key); err != nil {
			return nil, err
		}
		result.IndexesAdded = append(result.IndexesAdded, key)
	}

	docs, err := s.repo.ListDocuments(ctx, collection.ID)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := s.reindexDocument(ctx, collection, doc, target); err != nil {
			return nil, err
		}
		result.DocumentsProcessed++
	}

	return result, nil
}

func (s *Service) reindexDocument(ctx context.Context, collection *model.Collection, doc model.Document, target map[string]bool) error {
	body, err := s.blobs.Read(ctx, collection.DocumentsDirectory, doc.ID)
	if err != nil {
		return err
	}

	values, err := flatten.Flatten(body)
	if err != nil {
		return err
	}

	byKey := make(map[string][]flatten.Value)
	for _, v := range values {
		if target[v.Key] {
			byKey[v.Key] = append(byKey[v.Key], v)
		}
	}

	for key, entries := range byKey {
		tableName, err := s.indexes.EnsureIndexTable(ctx, key)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteIndexEntriesForDocument(ctx, tableName, doc.ID); err != nil {
			return err
		}

		indexed := make([]indextable.IndexedValue, len(entries))
		for i, e := range entries {
			indexed[i] = indextable.IndexedValue{ID: id.New(id.IndexTableValue), Position: e.Position, Value: e.Value}
		}
		if err := s.indexes.InsertEntries(ctx, tableName, doc.ID, indexed); err != nil {
			return err
		}
	}

	return nil
}

// targetKeys derives the new indexed-key set from the collection's current
// indexing mode and its IndexedField declarations (spec §4.10 step 1).
func (s *Service) targetKeys(ctx context.Context, collection *model.Collection) (map[string]bool, error) {
	switch collection.IndexingMode {
	case model.IndexingNone:
		return map[string]bool{}, nil
	case model.IndexingSelective:
		fields, err := s.repo.ListIndexedFields(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
		keys := make(map[string]bool, len(fields))
		for _, f := range fields {
			keys[f.FieldPath] = true
		}
		return keys, nil
	default: // All: derived from documents as they are (re-)flattened below.
		docs, err := s.repo.ListDocuments(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
		keys := make(map[string]bool)
		for _, doc := range docs {
			body, err := s.blobs.Read(ctx, collection.DocumentsDirectory, doc.ID)
			if err != nil {
				return nil, err
			}
			values, err := flatten.Flatten(body)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				keys[v.Key] = true
			}
		}
		return keys, nil
	}
}

// currentKeys is the set of index tables that currently hold at least one
// row for this collection's documents (spec §4.10 step 2).
func (s *Service) currentKeys(ctx context.Context, collectionID string) (map[string]bool, error) {
	mappings, err := s.repo.ListIndexTableMappings(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool)
	for _, m := range mappings {
		quoted := s.repo.Dialect().QuoteIdent(m.TableName)
		query := rebindPlaceholders(s.repo.Dialect(), fmt.Sprintf(
			`SELECT 1 FROM %s WHERE documentid IN (SELECT id FROM documents WHERE collectionid = ?) LIMIT 1`, quoted))

		rows, err := s.repo.ExecuteQuery(ctx, store.Statement{SQL: query, Args: []any{collectionID}})
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			keys[m.Key] = true
		}
	}
	return keys, nil
}

// rebindPlaceholders rewrites "?" placeholders into the dialect's syntax.
func rebindPlaceholders(d store.Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WatchCollection starts an fsnotify watch on collection's documents
// directory and triggers a debounced Rebuild(dropUnusedIndexes=false)
// whenever a blob appears there outside the normal ingestion path (spec
// DOMAIN STACK: fsnotify feeds rebuild input for blobs dropped externally).
// The caller owns the returned Watcher's lifecycle and must Close it.
func (s *Service) WatchCollection(ctx context.Context, collection model.Collection, logger *log.Logger) (*blobstore.Watcher, error) {
	w, err := blobstore.NewWatcher(collection.DocumentsDirectory)
	if err != nil {
		return nil, err
	}

	go func() {
		var timer *time.Timer
		trigger := func() {
			if _, err := s.Rebuild(ctx, collection.ID, false); err != nil && logger != nil {
				logger.Printf("rebuild collection %s after external blob write: %v", collection.ID, err)
			}
		}
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case _, ok := <-w.Created:
				if !ok {
					return
				}
				if timer == nil {
					timer = time.AfterFunc(watchDebounce, trigger)
				} else {
					timer.Reset(watchDebounce)
				}
			case err, ok := <-w.Errors():
				if !ok {
					continue
				}
				if logger != nil {
					logger.Printf("blob watcher error for collection %s: %v", collection.ID, err)
				}
			}
		}
	}()

	return w, nil
}
