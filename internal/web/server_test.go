package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/snapdiff/internal/config"
	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/sink"
	"github.com/JonMunkholm/snapdiff/internal/source"
)

const (
	csvV2  = "Part Location,Material\nL1,Glass\nL2,Steel\n"
	csvV10 = "Part Location,Material\nL1,Glass\nL2,Alu\nL3,Wood\n"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Compare.KeyColumn = "Part Location"
	cfg.Compare.Sort = "natural"
	cfg.Report.Title = "Parts"
	cfg.Server.MaxUploadSize = 1 << 20
	cfg.Server.RequestTimeout = 10 * time.Second
	cfg.Server.ReportCacheSize = 8
	cfg.Security.EnableCSP = true
	return cfg
}

// mapLoader serves snapshots parsed from in-memory CSV text.
type mapLoader map[string]string

func (m mapLoader) Load(_ context.Context, src string, ordinal int) (core.Snapshot, error) {
	text, ok := m[src]
	if !ok {
		return core.Snapshot{}, core.NewLoadError(src, "open", os.ErrNotExist)
	}
	return source.NewCSVLoader(',', nil).ReadSnapshot(strings.NewReader(text), src, ordinal)
}

func newTestServer(t *testing.T, loader core.SnapshotLoader, store sink.Store) *Server {
	t.Helper()
	if loader == nil {
		loader = mapLoader{}
	}
	var reportSink core.ReportSink
	if store != nil {
		reportSink = store
	}
	svc := core.NewService(loader, reportSink, core.ServiceConfig{MaxConcurrentRuns: 2, MaxRunWait: time.Second})

	srv, err := NewServer(Options{Service: svc, Store: store, Config: testConfig()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, target string, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Runs == nil || resp.Runs.MaxConcurrent != 2 {
		t.Errorf("health = %+v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
}

func TestCompareUpload(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := serve(srv, uploadRequest(t, "/api/compare", map[string]string{
		"v10.csv": csvV10,
		"v2.csv":  csvV2,
	}, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc sink.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if doc.Title != "Parts" || doc.KeyColumn != "Part Location" {
		t.Errorf("header = %q %q", doc.Title, doc.KeyColumn)
	}
	if len(doc.Comparisons) != 1 {
		t.Fatalf("comparisons = %d, want 1", len(doc.Comparisons))
	}
	c := doc.Comparisons[0]
	if c.Previous != "v2.csv" || c.Current != "v10.csv" {
		t.Errorf("pair = %s -> %s, want natural order v2 -> v10", c.Previous, c.Current)
	}
	if len(c.Added) != 1 || c.Added[0].Key != "L3" {
		t.Errorf("added = %+v", c.Added)
	}
	if len(c.Changed) != 1 || c.Changed[0].Key != "L2" {
		t.Errorf("changed = %+v", c.Changed)
	}

	loc := rec.Header().Get("Location")
	if loc != "/api/reports/"+doc.ID {
		t.Fatalf("Location = %q", loc)
	}

	got := serve(srv, httptest.NewRequest(http.MethodGet, loc, nil))
	if got.Code != http.StatusOK || !strings.Contains(got.Body.String(), doc.ID) {
		t.Errorf("GET %s = %d", loc, got.Code)
	}

	text := serve(srv, httptest.NewRequest(http.MethodGet, loc+"/text", nil))
	if !strings.HasPrefix(text.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("text content type = %q", text.Header().Get("Content-Type"))
	}
	if !strings.Contains(text.Body.String(), "COMPARISON 1: v2.csv -> v10.csv") {
		t.Errorf("text report:\n%s", text.Body.String())
	}

	page := serve(srv, httptest.NewRequest(http.MethodGet, "/reports/"+doc.ID, nil))
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("page = %d", page.Code)
	}

	list := serve(srv, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	var infos []sink.ReportInfo
	if err := json.Unmarshal(list.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != doc.ID {
		t.Errorf("list = %+v", infos)
	}
}

func TestCompareUpload_Format(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := serve(srv, uploadRequest(t, "/api/compare?format=yaml", map[string]string{
		"a.csv": csvV2,
		"b.csv": csvV10,
	}, map[string]string{"key": "Part Location"}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/yaml" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "key_column: Part Location") {
		t.Errorf("body:\n%s", rec.Body.String())
	}
}

func TestCompareUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		files    map[string]string
		fields   map[string]string
		status   int
		wantCode string
	}{
		{
			name:     "one file",
			target:   "/api/compare",
			files:    map[string]string{"a.csv": csvV2},
			status:   http.StatusBadRequest,
			wantCode: "RUN001",
		},
		{
			name:     "empty file",
			target:   "/api/compare",
			files:    map[string]string{"a.csv": csvV2, "b.csv": ""},
			status:   http.StatusUnprocessableEntity,
			wantCode: "LOAD002",
		},
		{
			name:     "unknown format",
			target:   "/api/compare?format=pdf",
			files:    map[string]string{"a.csv": csvV2, "b.csv": csvV10},
			status:   http.StatusBadRequest,
			wantCode: "SINK002",
		},
		{
			name:     "unknown sort",
			target:   "/api/compare",
			files:    map[string]string{"a.csv": csvV2, "b.csv": csvV10},
			fields:   map[string]string{"sort": "random"},
			status:   http.StatusBadRequest,
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, nil)

			rec := serve(srv, uploadRequest(t, tt.target, tt.files, tt.fields))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestCompareUpload_MissingKeyIsReported(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := serve(srv, uploadRequest(t, "/api/compare", map[string]string{
		"a.csv": csvV2,
		"b.csv": csvV10,
	}, map[string]string{"key": "Location"}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc sink.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Comparisons[0].Error == nil || doc.Comparisons[0].Error.Code != "KEY001" {
		t.Errorf("comparison error = %+v, want KEY001", doc.Comparisons[0].Error)
	}
}

func TestCompareSources(t *testing.T) {
	loader := mapLoader{"snap-1": csvV2, "snap-2": csvV10}
	srv := newTestServer(t, loader, nil)

	body := `{"sources":["snap-2"," snap-1 ",""],"sort":"name"}`
	req := httptest.NewRequest(http.MethodPost, "/api/compare/sources", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(srv, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc sink.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(doc.Sources, ","); got != "snap-1,snap-2" {
		t.Errorf("sources = %s", got)
	}
}

func TestCompareSources_LoadFailure(t *testing.T) {
	srv := newTestServer(t, mapLoader{"snap-1": csvV2}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/compare/sources", strings.NewReader(`{"sources":["snap-1","missing"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(srv, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec).Code; got != "LOAD001" {
		t.Errorf("code = %s, want LOAD001", got)
	}
}

func TestGetReport_NotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/reports/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != "RPT001" {
		t.Errorf("code = %s, want RPT001", got)
	}

	page := serve(srv, httptest.NewRequest(http.MethodGet, "/reports/nope", nil))
	if page.Code != http.StatusNotFound || !strings.Contains(page.Body.String(), "RPT001") {
		t.Errorf("page = %d %q", page.Code, page.Body.String())
	}
}

func TestGetReport_FromStore(t *testing.T) {
	store, err := sink.OpenSQLite(filepath.Join(t.TempDir(), "reports.db"), "Parts")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	first := newTestServer(t, nil, store)
	rec := serve(first, uploadRequest(t, "/api/compare", map[string]string{"a.csv": csvV2, "b.csv": csvV10}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")

	// A fresh server has an empty cache and must read the store.
	second := newTestServer(t, nil, store)
	got := serve(second, httptest.NewRequest(http.MethodGet, loc, nil))
	if got.Code != http.StatusOK {
		t.Fatalf("GET %s = %d (%s)", loc, got.Code, got.Body.String())
	}

	list := serve(second, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	var infos []sink.ReportInfo
	if err := json.Unmarshal(list.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || "/api/reports/"+infos[0].ID != loc {
		t.Errorf("list = %+v", infos)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	cfg.Rate.CompareLimit = 1

	svc := core.NewService(mapLoader{}, nil, core.ServiceConfig{})
	srv, err := NewServer(Options{Service: svc, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if got := decodeError(t, rec).Code; got != "RUN003" {
		t.Errorf("code = %s, want RUN003", got)
	}
}

func TestNewServer_RequiresService(t *testing.T) {
	if _, err := NewServer(Options{Config: testConfig()}); err == nil {
		t.Error("expected error without service")
	}
}
