// Package ingest orchestrates document ingestion: lock, schema dedup,
// validation, hashing, persistence, flattening, and indexing (spec §4.8,
// component J).
package ingest

import (
	"context"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/constraint"
	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/flatten"
	"github.com/lattice/lattice/internal/lattice/hash"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/lattice/schema"
	"github.com/lattice/lattice/internal/store"
)

// Request is one ingestion request (spec §4.8 signature).
type Request struct {
	CollectionID string
	RawJSON      []byte
	Name         *string
	Labels       []string
	Tags         map[string]string
}

// Result is the outcome of a successful ingestion. Warnings is populated
// only under Soft enforcement (SPEC_FULL open-question resolution: warnings
// ride the response envelope's data, never silently dropped).
type Result struct {
	Document model.Document
	Warnings []constraint.FieldError
}

// Service implements Ingest(collectionId, rawJson, name?, labels?, tags?).
type Service struct {
	repo    store.Repository
	blobs   *blobstore.Store
	locks   *lock.Manager
	indexes *indextable.Manager
}

func New(repo store.Repository, blobs *blobstore.Store, locks *lock.Manager, indexes *indextable.Manager) *Service {
	return &Service{repo: repo, blobs: blobs, locks: locks, indexes: indexes}
}

// Ingest runs the full pipeline described in spec §4.8.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	collection, err := s.repo.GetCollection(ctx, req.CollectionID)
	if err != nil {
		return nil, err
	}

	var lockID string
	if req.Name != nil && collection.EnableObjectLocking {
		l, err := s.locks.TryAcquire(ctx, collection.ID, *req.Name, collection.ObjectLockExpiration)
		if err != nil {
			return nil, err
		}
		lockID = l.ID
		defer func() {
			if lockID != "" {
				s.locks.Release(context.Background(), lockID)
			}
		}()
	}

	schemaID, err := s.dedupeSchema(ctx, req.RawJSON)
	if err != nil {
		return nil, err
	}

	values, err := flatten.Flatten(req.RawJSON)
	if err != nil {
		return nil, err
	}

	var warnings []constraint.FieldError
	if collection.SchemaEnforcementMode != model.EnforcementNone {
		constraints, err := s.repo.ListFieldConstraints(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
		result := constraint.Validate(values, constraints)
		if !result.OK {
			switch collection.SchemaEnforcementMode {
			case model.EnforcementStrict:
				return nil, errs.Validation(toErrsFieldErrors(result.Errors))
			case model.EnforcementSoft:
				warnings = result.Errors
			}
		}
	}

	doc := model.Document{
		ID:            id.New(id.Document),
		CollectionID:  collection.ID,
		SchemaID:      schemaID,
		Name:          req.Name,
		ContentLength: int64(len(req.RawJSON)),
		SHA256Hash:    hash.SHA256Hex(req.RawJSON),
	}

	if err := s.repo.CreateDocument(ctx, &doc); err != nil {
		return nil, err
	}

	if _, err := s.blobs.Write(ctx, collection.DocumentsDirectory, doc.ID, req.RawJSON); err != nil {
		s.repo.DeleteDocument(context.Background(), doc.ID)
		return nil, err
	}

	if err := s.indexDocument(ctx, collection, doc.ID, values); err != nil {
		return nil, err
	}

	if err := s.persistAnnotations(ctx, doc.ID, req.Labels, req.Tags); err != nil {
		return nil, err
	}

	return &Result{Document: doc, Warnings: warnings}, nil
}

// dedupeSchema extracts the candidate document's schema, then looks up or
// creates a Schema row by content hash. Hash equality alone dedupes —
// flexible matching is not used on ingest (spec §4.8 step 3).
func (s *Service) dedupeSchema(ctx context.Context, raw []byte) (string, error) {
	elements, schemaHash, err := schema.Extract(raw)
	if err != nil {
		return "", err
	}

	existing, err := s.repo.GetSchemaByHash(ctx, schemaHash)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	candidate := &model.Schema{ID: id.New(id.Schema), Hash: schemaHash}
	if err := s.repo.CreateSchema(ctx, candidate, elements); err != nil {
		e, ok := errs.Of(err)
		if ok && e.Kind == errs.Conflict {
			// Lost the race to a concurrent creator (spec §5, §9): re-read
			// and continue with the winner.
			winner, getErr := s.repo.GetSchemaByHash(ctx, schemaHash)
			if getErr != nil {
				return "", getErr
			}
			if winner != nil {
				return winner.ID, nil
			}
		}
		return "", err
	}

	return candidate.ID, nil
}

// indexDocument determines the indexable key set per the collection's
// indexing mode and bulk-inserts one row per flattened entry of each key
// (spec §4.8 steps 8-9).
func (s *Service) indexDocument(ctx context.Context, collection *model.Collection, documentID string, values []flatten.Value) error {
	keys, err := s.indexableKeys(ctx, collection, values)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	byKey := make(map[string][]flatten.Value)
	for _, v := range values {
		if keys[v.Key] {
			byKey[v.Key] = append(byKey[v.Key], v)
		}
	}

	for key, entries := range byKey {
		tableName, err := s.indexes.EnsureIndexTable(ctx, key)
		if err != nil {
			return err
		}

		indexed := make([]indextable.IndexedValue, len(entries))
		for i, e := range entries {
			indexed[i] = indextable.IndexedValue{ID: id.New(id.IndexTableValue), Position: e.Position, Value: e.Value}
		}
		if err := s.indexes.InsertEntries(ctx, tableName, documentID, indexed); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) indexableKeys(ctx context.Context, collection *model.Collection, values []flatten.Value) (map[string]bool, error) {
	switch collection.IndexingMode {
	case model.IndexingNone:
		return nil, nil
	case model.IndexingAll:
		keys := make(map[string]bool)
		for _, v := range values {
			keys[v.Key] = true
		}
		return keys, nil
	case model.IndexingSelective:
		fields, err := s.repo.ListIndexedFields(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
		allowed := make(map[string]bool, len(fields))
		for _, f := range fields {
			allowed[f.FieldPath] = true
		}
		keys := make(map[string]bool)
		for _, v := range values {
			if allowed[v.Key] {
				keys[v.Key] = true
			}
		}
		return keys, nil
	default:
		return nil, nil
	}
}

func (s *Service) persistAnnotations(ctx context.Context, documentID string, labels []string, tags map[string]string) error {
	for _, value := range labels {
		l := &model.Label{ID: id.New(id.Label), DocumentID: &documentID, Value: value}
		if err := s.repo.AddLabel(ctx, l); err != nil {
			return err
		}
	}
	for key, value := range tags {
		t := &model.Tag{ID: id.New(id.Tag), DocumentID: &documentID, Key: key, Value: value}
		if err := s.repo.AddTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func toErrsFieldErrors(in []constraint.FieldError) []errs.FieldError {
	out := make([]errs.FieldError, len(in))
	for i, e := range in {
		out[i] = errs.FieldError{FieldPath: e.FieldPath, Message: e.Message}
	}
	return out
}
