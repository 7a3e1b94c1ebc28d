package httpapi

import (
	"net/http"
	"time"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/model"
)

// CreateCollectionRequest is the PUT /collections body.
type CreateCollectionRequest struct {
	Name                   string                      `json:"name"`
	Description            *string                     `json:"description,omitempty"`
	DocumentsDirectory     string                      `json:"documentsDirectory"`
	SchemaEnforcementMode  model.SchemaEnforcementMode `json:"schemaEnforcementMode,omitempty"`
	IndexingMode           model.IndexingMode          `json:"indexingMode,omitempty"`
	EnableObjectLocking    bool                        `json:"enableObjectLocking,omitempty"`
	ObjectLockExpiration   int                         `json:"objectLockExpirationSeconds,omitempty"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	collections, err := s.Repo.ListCollections(r.Context())
	if err != nil {
		writeErr(w, start, err)
		return
	}
	writeData(w, start, http.StatusOK, collections)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CreateCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, start, err)
		return
	}
	if req.Name == "" {
		writeErr(w, start, errs.InvalidInputf("name is required"))
		return
	}
	if req.DocumentsDirectory == "" {
		writeErr(w, start, errs.InvalidInputf("documentsDirectory is required"))
		return
	}
	if req.SchemaEnforcementMode == "" {
		req.SchemaEnforcementMode = model.EnforcementNone
	}
	if req.IndexingMode == "" {
		req.IndexingMode = model.IndexingAll
	}
	if req.EnableObjectLocking && req.ObjectLockExpiration == 0 {
		req.ObjectLockExpiration = 30
	}

	if existing, err := s.Repo.GetCollectionByName(r.Context(), req.Name); err != nil {
		if e, ok := errs.Of(err); !ok || e.Kind != errs.NotFound {
			writeErr(w, start, err)
			return
		}
	} else if existing != nil {
		writeErr(w, start, errs.Conflictf("collection %q already exists", req.Name))
		return
	}

	c := &model.Collection{
		ID:                    id.New(id.Collection),
		Name:                  req.Name,
		Description:           req.Description,
		DocumentsDirectory:    req.DocumentsDirectory,
		SchemaEnforcementMode: req.SchemaEnforcementMode,
		IndexingMode:          req.IndexingMode,
		EnableObjectLocking:   req.EnableObjectLocking,
		ObjectLockExpiration:  req.ObjectLockExpiration,
	}

	if err := s.Blobs.EnsureDirectory(c.DocumentsDirectory); err != nil {
		writeErr(w, start, err)
		return
	}

	if err := s.Repo.CreateCollection(r.Context(), c); err != nil {
		writeErr(w, start, err)
		return
	}

	writeData(w, start, http.StatusCreated, c)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}
	writeData(w, start, http.StatusOK, c)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.Repo.DeleteCollection(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, start, err)
		return
	}
	writeNoContent(w, start, http.StatusNoContent)
}

func (s *Server) handleGetConstraints(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}
	constraints, err := s.Repo.ListFieldConstraints(r.Context(), c.ID)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	writeData(w, start, http.StatusOK, map[string]any{
		"schemaEnforcementMode": c.SchemaEnforcementMode,
		"fieldConstraints":      constraints,
	})
}

// PutConstraintsRequest is the PUT /collections/{id}/constraints body.
type PutConstraintsRequest struct {
	SchemaEnforcementMode model.SchemaEnforcementMode `json:"schemaEnforcementMode"`
	FieldConstraints      []model.FieldConstraint     `json:"fieldConstraints,omitempty"`
}

func (s *Server) handlePutConstraints(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}

	var req PutConstraintsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, start, err)
		return
	}
	switch req.SchemaEnforcementMode {
	case model.EnforcementNone, model.EnforcementSoft, model.EnforcementStrict:
	default:
		writeErr(w, start, errs.InvalidInputf("unknown schemaEnforcementMode %q", req.SchemaEnforcementMode))
		return
	}

	for i := range req.FieldConstraints {
		req.FieldConstraints[i].ID = id.New(id.FieldConstraint)
		req.FieldConstraints[i].CollectionID = c.ID
	}

	if err := s.Repo.ReplaceFieldConstraints(r.Context(), c.ID, req.FieldConstraints); err != nil {
		writeErr(w, start, err)
		return
	}
	if err := s.Repo.UpdateCollectionConstraints(r.Context(), c.ID, req.SchemaEnforcementMode); err != nil {
		writeErr(w, start, err)
		return
	}

	writeNoContent(w, start, http.StatusNoContent)
}

func (s *Server) handleGetIndexing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}
	fields, err := s.Repo.ListIndexedFields(r.Context(), c.ID)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	writeData(w, start, http.StatusOK, map[string]any{
		"indexingMode":  c.IndexingMode,
		"indexedFields": fields,
	})
}

// PutIndexingRequest is the PUT /collections/{id}/indexing body.
type PutIndexingRequest struct {
	IndexingMode    model.IndexingMode `json:"indexingMode"`
	IndexedFields   []string           `json:"indexedFields,omitempty"`
	RebuildIndexes  bool               `json:"rebuildIndexes,omitempty"`
}

func (s *Server) handlePutIndexing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}

	var req PutIndexingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, start, err)
		return
	}
	switch req.IndexingMode {
	case model.IndexingNone, model.IndexingAll, model.IndexingSelective:
	default:
		writeErr(w, start, errs.InvalidInputf("unknown indexingMode %q", req.IndexingMode))
		return
	}

	if err := s.Repo.ReplaceIndexedFields(r.Context(), c.ID, req.IndexedFields); err != nil {
		writeErr(w, start, err)
		return
	}
	if err := s.Repo.UpdateCollectionIndexing(r.Context(), c.ID, req.IndexingMode); err != nil {
		writeErr(w, start, err)
		return
	}

	if req.RebuildIndexes {
		if _, err := s.Rebuild.Rebuild(r.Context(), c.ID, true); err != nil {
			writeErr(w, start, err)
			return
		}
	}

	writeNoContent(w, start, http.StatusNoContent)
}

// RebuildIndexesRequest is the POST /collections/{id}/indexes/rebuild body.
type RebuildIndexesRequest struct {
	DropUnusedIndexes bool `json:"dropUnusedIndexes,omitempty"`
}

func (s *Server) handleRebuildIndexes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := s.Repo.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, start, err)
		return
	}

	var req RebuildIndexesRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, start, err)
			return
		}
	}

	result, err := s.Rebuild.Rebuild(r.Context(), c.ID, req.DropUnusedIndexes)
	if err != nil {
		writeErr(w, start, err)
		return
	}

	writeData(w, start, http.StatusOK, result)
}
