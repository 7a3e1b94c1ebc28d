package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/ingest"
	"github.com/lattice/lattice/internal/lattice/search"
)

// CreateDocumentRequest is the PUT /collections/{cid}/documents body.
type CreateDocumentRequest struct {
	Document json.RawMessage   `json:"document"`
	Name     *string           `json:"name,omitempty"`
	Labels   []string          `json:"labels,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cid := r.PathValue("cid")
	if _, err := s.Repo.GetCollection(r.Context(), cid); err != nil {
		writeErr(w, start, err)
		return
	}
	docs, err := s.Repo.ListDocuments(r.Context(), cid)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	writeData(w, start, http.StatusOK, docs)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cid := r.PathValue("cid")

	var req CreateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, start, err)
		return
	}
	if len(req.Document) == 0 {
		writeErr(w, start, errs.InvalidInputf("document body is required"))
		return
	}

	result, err := s.Ingest.Ingest(r.Context(), ingest.Request{
		CollectionID: cid,
		RawJSON:      req.Document,
		Name:         req.Name,
		Labels:       req.Labels,
		Tags:         req.Tags,
	})
	if err != nil {
		writeErr(w, start, err)
		return
	}

	if len(result.Warnings) > 0 {
		writeData(w, start, http.StatusCreated, map[string]any{
			"document": result.Document,
			"warnings": result.Warnings,
		})
		return
	}

	writeData(w, start, http.StatusCreated, result.Document)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cid := r.PathValue("cid")
	did := r.PathValue("id")

	c, err := s.Repo.GetCollection(r.Context(), cid)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	doc, err := s.Repo.GetDocument(r.Context(), did)
	if err != nil {
		writeErr(w, start, err)
		return
	}

	includeContent, _ := strconv.ParseBool(r.URL.Query().Get("includeContent"))
	if !includeContent {
		writeData(w, start, http.StatusOK, doc)
		return
	}

	// Raw-body exception (spec §6.1): returns the document content directly,
	// unwrapped, instead of the envelope.
	body, err := s.Blobs.Read(r.Context(), c.DocumentsDirectory, doc.ID)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Document-Id", doc.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cid := r.PathValue("cid")
	did := r.PathValue("id")

	c, err := s.Repo.GetCollection(r.Context(), cid)
	if err != nil {
		writeErr(w, start, err)
		return
	}
	doc, err := s.Repo.GetDocument(r.Context(), did)
	if err != nil {
		writeErr(w, start, err)
		return
	}

	if err := s.Blobs.Delete(c.DocumentsDirectory, doc.ID); err != nil {
		writeErr(w, start, err)
		return
	}
	if err := s.Indexes.PurgeDocument(r.Context(), doc.ID); err != nil {
		writeErr(w, start, err)
		return
	}
	if err := s.Repo.DeleteDocument(r.Context(), doc.ID); err != nil {
		writeErr(w, start, err)
		return
	}

	writeNoContent(w, start, http.StatusNoContent)
}

// SearchDocumentsRequest is the POST /collections/{cid}/documents/search body.
type SearchDocumentsRequest struct {
	Expression     string            `json:"expression,omitempty"`
	Filters        []search.Filter   `json:"filters,omitempty"`
	Labels         []string          `json:"labels,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	MaxResults     int               `json:"maxResults,omitempty"`
	Skip           int               `json:"skip,omitempty"`
	Ordering       search.Ordering   `json:"ordering,omitempty"`
	IncludeContent bool              `json:"includeContent,omitempty"`
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cid := r.PathValue("cid")

	var req SearchDocumentsRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, start, err)
			return
		}
	}

	result, err := s.Search.Search(r.Context(), cid, search.Query{
		Expression:     req.Expression,
		Filters:        req.Filters,
		Labels:         req.Labels,
		Tags:           req.Tags,
		MaxResults:     req.MaxResults,
		Skip:           req.Skip,
		Ordering:       req.Ordering,
		IncludeContent: req.IncludeContent,
	})
	if err != nil {
		writeErr(w, start, err)
		return
	}

	writeData(w, start, http.StatusOK, result)
}
