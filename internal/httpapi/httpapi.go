// Package httpapi exposes the ingestion, search, and index-maintenance
// services over a versioned HTTP surface (spec §6.1). It is an external
// collaborator of the core: every handler here only calls into
// internal/lattice/{ingest,search,rebuild} and internal/store, never the
// other way around.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/ingest"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/rebuild"
	"github.com/lattice/lattice/internal/lattice/search"
	"github.com/lattice/lattice/internal/store"
)

// Server holds the wired core services a router dispatches into.
type Server struct {
	Repo      store.Repository
	Blobs     *blobstore.Store
	Locks     *lock.Manager
	Indexes   *indextable.Manager
	Ingest    *ingest.Service
	Search    *search.Service
	Rebuild   *rebuild.Service
	StartedAt time.Time
	Backend   string
}

// NewRouter builds the /v1.0 routed mux. Go's net/http ServeMux pattern
// matching (method + path variables) is used directly rather than pulling
// in a third-party router, since the teacher's own HTTP-free codebase gives
// no precedent to generalize from here.
func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1.0/health", s.handleHealth)

	mux.HandleFunc("GET /v1.0/collections", s.handleListCollections)
	mux.HandleFunc("PUT /v1.0/collections", s.handleCreateCollection)
	mux.HandleFunc("GET /v1.0/collections/{id}", s.handleGetCollection)
	mux.HandleFunc("HEAD /v1.0/collections/{id}", s.handleGetCollection)
	mux.HandleFunc("DELETE /v1.0/collections/{id}", s.handleDeleteCollection)

	mux.HandleFunc("GET /v1.0/collections/{id}/constraints", s.handleGetConstraints)
	mux.HandleFunc("PUT /v1.0/collections/{id}/constraints", s.handlePutConstraints)

	mux.HandleFunc("GET /v1.0/collections/{id}/indexing", s.handleGetIndexing)
	mux.HandleFunc("PUT /v1.0/collections/{id}/indexing", s.handlePutIndexing)

	mux.HandleFunc("POST /v1.0/collections/{id}/indexes/rebuild", s.handleRebuildIndexes)

	mux.HandleFunc("GET /v1.0/collections/{cid}/documents", s.handleListDocuments)
	mux.HandleFunc("PUT /v1.0/collections/{cid}/documents", s.handleCreateDocument)
	mux.HandleFunc("GET /v1.0/collections/{cid}/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("HEAD /v1.0/collections/{cid}/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /v1.0/collections/{cid}/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /v1.0/collections/{cid}/documents/search", s.handleSearchDocuments)

	mux.HandleFunc("GET /v1.0/schemas", s.handleListSchemas)
	mux.HandleFunc("GET /v1.0/schemas/{id}", s.handleGetSchema)
	mux.HandleFunc("GET /v1.0/schemas/{id}/elements", s.handleListSchemaElements)

	mux.HandleFunc("GET /v1.0/tables", s.handleListTables)

	return Logging(RequestID(mux))
}

// envelope is the response wrapper spec §6.1 requires for every endpoint
// except the raw document-content path.
type envelope struct {
	Success          bool   `json:"success"`
	StatusCode       int    `json:"statusCode"`
	Data             any    `json:"data,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	TimestampUtc     string `json:"timestampUtc"`
	GUID             string `json:"guid"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// writeData wraps data in a success envelope at the given status code.
func writeData(w http.ResponseWriter, start time.Time, status int, data any) {
	writeEnvelope(w, start, status, true, data, "")
}

// writeNoContent writes an empty success envelope, used for 204 results.
func writeNoContent(w http.ResponseWriter, start time.Time, status int) {
	writeEnvelope(w, start, status, true, nil, "")
}

// writeErr maps err to a status code and error envelope per spec §7's
// kind taxonomy and §6.1's status code table.
func writeErr(w http.ResponseWriter, start time.Time, err error) {
	e, ok := errs.Of(err)
	if !ok {
		writeEnvelope(w, start, http.StatusInternalServerError, false, nil, err.Error())
		return
	}

	status := statusFor(e.Kind)
	var data any
	switch e.Kind {
	case errs.DocumentLocked:
		data = map[string]any{
			"lockedByHostname": e.LockedByHostname,
			"lockCreatedUtc":   e.LockCreatedUtc,
		}
	case errs.SchemaValidation:
		data = map[string]any{"fieldErrors": e.FieldErrors}
	}

	writeEnvelopeWithData(w, start, status, false, data, e.Message)
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.InvalidInput:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Conflict, errs.DocumentLocked:
		return http.StatusConflict
	case errs.SchemaValidation:
		return http.StatusUnprocessableEntity
	case errs.Cancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, start time.Time, status int, success bool, data any, errMsg string) {
	writeEnvelopeWithData(w, start, status, success, data, errMsg)
}

func writeEnvelopeWithData(w http.ResponseWriter, start time.Time, status int, success bool, data any, errMsg string) {
	body := envelope{
		Success:          success,
		StatusCode:       status,
		Data:             data,
		ErrorMessage:     errMsg,
		TimestampUtc:     time.Now().UTC().Format(time.RFC3339Nano),
		GUID:             uuid.NewString(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errs.InvalidInputf("invalid request body: %v", err)
	}
	return nil
}
