package valueset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

func newTestHandler() *Handler {
	resolver := NewResolver(mapLookup{
		"http://hl7.org/vs/a": &fhir.ValueSet{URL: "http://hl7.org/vs/a", Version: "1"},
	})
	exp := &stubExpander{byURL: map[string]*fhir.ValueSet{
		"http://hl7.org/vs/a": expandedFor("http://hl7.org/vs/a", "1"),
	}}
	svc := NewService(&fakeRepo{rowsPerVS: 2}, exp, resolver, zerolog.Nop())
	return NewHandler(svc)
}

func TestHandler_Resolve_Success(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/valuesets/resolve?url=http://hl7.org/vs/a", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Resolve(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var vs fhir.ValueSet
	if err := json.Unmarshal(rec.Body.Bytes(), &vs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if vs.URL != "http://hl7.org/vs/a" {
		t.Errorf("unexpected value set url: %q", vs.URL)
	}
}

func TestHandler_Resolve_NotFound(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/valuesets/resolve?url=http://hl7.org/vs/none", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Resolve(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Resolve_MissingURL(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/valuesets/resolve", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Resolve(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Sync_Success(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	body := `{"urls": ["http://hl7.org/vs/a"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/valuesets/sync", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Sync(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var run SyncRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(run.Results) != 1 || run.Results[0].Inserted != 2 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestHandler_Sync_EmptyBody(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/valuesets/sync", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Sync(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

var _ Expander = (*stubExpander)(nil)
var _ CodesRepository = (*fakeRepo)(nil)
var _ ResourceLookup = mapLookup(nil)

// Ensure the sync endpoint result stays serializable for API consumers.
func TestSyncRun_JSONShape(t *testing.T) {
	h := newTestHandler()
	run := h.svc.SyncURLs(context.Background(), []string{"http://hl7.org/vs/a"})
	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("marshal run: %v", err)
	}
	if !strings.Contains(string(data), `"inserted":2`) {
		t.Errorf("unexpected serialized run: %s", data)
	}
}
