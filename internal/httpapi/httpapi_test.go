package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/ingest"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/rebuild"
	"github.com/lattice/lattice/internal/lattice/search"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	repo, err := sqlstore.Open(t.Context(), sqlstore.BackendSQLite, filepath.Join(t.TempDir(), "lattice.db"))
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	blobs := blobstore.New()
	locks := lock.New(repo, "test-host")
	indexes := indextable.New(repo)

	srv := &Server{
		Repo:      repo,
		Blobs:     blobs,
		Locks:     locks,
		Indexes:   indexes,
		Ingest:    ingest.New(repo, blobs, locks, indexes),
		Search:    search.New(repo, blobs),
		Rebuild:   rebuild.New(repo, blobs, indexes),
		StartedAt: time.Now(),
		Backend:   "sqlite",
	}
	return srv, NewRouter(srv)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1.0/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Errorf("Success = false, want true")
	}
}

func TestCreateAndGetCollection(t *testing.T) {
	_, router := newTestServer(t)
	dir := t.TempDir()

	body, _ := json.Marshal(CreateCollectionRequest{
		Name:               "widgets",
		DocumentsDirectory: filepath.Join(dir, "widgets"),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	cid := data["id"].(string)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1.0/collections/"+cid, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
}

func TestCreateCollectionRejectsDuplicateName(t *testing.T) {
	_, router := newTestServer(t)
	dir := t.TempDir()

	body, _ := json.Marshal(CreateCollectionRequest{Name: "widgets", DocumentsDirectory: filepath.Join(dir, "widgets")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, want 201", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections", bytes.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second create status = %d, want 409", rec.Code)
	}
}

func TestCreateAndDeleteDocument(t *testing.T) {
	_, router := newTestServer(t)
	dir := t.TempDir()

	colBody, _ := json.Marshal(CreateCollectionRequest{Name: "events", DocumentsDirectory: filepath.Join(dir, "events")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections", bytes.NewReader(colBody)))
	cid := decodeEnvelope(t, rec).Data.(map[string]any)["id"].(string)

	docBody, _ := json.Marshal(CreateDocumentRequest{Document: json.RawMessage(`{"kind":"click"}`)})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections/"+cid+"/documents", bytes.NewReader(docBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create document status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	did := decodeEnvelope(t, rec).Data.(map[string]any)["id"].(string)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1.0/collections/"+cid+"/documents/"+did, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204, body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1.0/collections/"+cid+"/documents/"+did, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", rec.Code)
	}
}

func TestSearchDocumentsEndpoint(t *testing.T) {
	_, router := newTestServer(t)
	dir := t.TempDir()

	colBody, _ := json.Marshal(CreateCollectionRequest{Name: "people", DocumentsDirectory: filepath.Join(dir, "people")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections", bytes.NewReader(colBody)))
	cid := decodeEnvelope(t, rec).Data.(map[string]any)["id"].(string)

	for _, raw := range []string{`{"name":"ada"}`, `{"name":"grace"}`} {
		docBody, _ := json.Marshal(CreateDocumentRequest{Document: json.RawMessage(raw)})
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1.0/collections/"+cid+"/documents", bytes.NewReader(docBody)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create document status = %d, want 201", rec.Code)
		}
	}

	queryBody, _ := json.Marshal(SearchDocumentsRequest{Filters: []search.Filter{{Field: "name", Condition: search.Equals, Value: "ada"}}})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1.0/collections/"+cid+"/documents/search", bytes.NewReader(queryBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if int(data["Total"].(float64)) != 1 {
		t.Errorf("Total = %v, want 1", data["Total"])
	}
}

func TestGetDocumentMissingCollectionReturns404(t *testing.T) {
	_, router := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1.0/collections/col_nonexistent/documents/doc_nonexistent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
