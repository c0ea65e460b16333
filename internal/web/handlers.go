package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/logging"
	"github.com/JonMunkholm/snapdiff/internal/sink"
	"github.com/JonMunkholm/snapdiff/internal/source"
)

// multipartMemory is how much of an upload is held in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status string                 `json:"status"`
	Runs   *core.RunLimiterStatus `json:"runs,omitempty"`
	Cached int                    `json:"cached_reports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Cached: s.cache.Len()}
	if l := s.service.Limiter(); l != nil {
		st := l.Status()
		resp.Runs = &st
	}
	render.JSON(w, r, resp)
}

// handleCompareUpload compares CSV files posted as multipart field "files".
// Optional form fields: key, sort. Optional query: format.
func (s *Server) handleCompareUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("invalid upload: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := orderUploads(r.MultipartForm.File["files"], s.sortMode(r.FormValue("sort")))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if len(files) < 2 {
		respondError(w, r, core.ErrInsufficientSnapshots, http.StatusBadRequest)
		return
	}

	snapshots := make([]core.Snapshot, 0, len(files))
	for i, fh := range files {
		snap, err := s.readUpload(fh, i)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		snapshots = append(snapshots, snap)
	}

	report, err := s.service.CompareSnapshots(r.Context(), snapshots, s.keyColumn(r.FormValue("key")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, report)
}

func (s *Server) readUpload(fh *multipart.FileHeader, ordinal int) (core.Snapshot, error) {
	f, err := fh.Open()
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(fh.Filename, "open upload", err)
	}
	defer f.Close()
	return s.uploads.ReadSnapshot(f, fh.Filename, ordinal)
}

// orderUploads sorts uploaded files by name like command-line sources.
func orderUploads(files []*multipart.FileHeader, mode string) ([]*multipart.FileHeader, error) {
	names := make([]string, len(files))
	byName := make(map[string][]*multipart.FileHeader, len(files))
	for i, fh := range files {
		names[i] = fh.Filename
		byName[fh.Filename] = append(byName[fh.Filename], fh)
	}

	ordered, err := source.Order(names, mode)
	if err != nil {
		return nil, err
	}

	out := make([]*multipart.FileHeader, 0, len(files))
	for _, name := range ordered {
		out = append(out, byName[name][0])
		byName[name] = byName[name][1:]
	}
	return out, nil
}

// compareSourcesRequest is the body of POST /api/compare/sources.
type compareSourcesRequest struct {
	Sources []string `json:"sources"`
	Key     string   `json:"key"`
	Sort    string   `json:"sort"`
}

// Bind implements render.Binder.
func (req *compareSourcesRequest) Bind(_ *http.Request) error {
	cleaned := req.Sources[:0]
	for _, src := range req.Sources {
		if src = strings.TrimSpace(src); src != "" {
			cleaned = append(cleaned, src)
		}
	}
	req.Sources = cleaned
	return nil
}

// handleCompareSources compares sources resolved by the service's loader.
func (s *Server) handleCompareSources(w http.ResponseWriter, r *http.Request) {
	var req compareSourcesRequest
	if err := render.Bind(r, &req); err != nil {
		respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	sources, err := source.Order(req.Sources, s.sortMode(req.Sort))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	report, err := s.service.Compare(r.Context(), core.RunRequest{
		Sources:   sources,
		KeyColumn: s.keyColumn(req.Key),
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, report)
}

// finish hands the report to the sink, caches it and writes the response.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, report core.Report) {
	loc, err := s.service.WriteReport(r.Context(), report)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	doc := sink.NewDocument(report, s.cfg.Report.Title)
	s.cache.Add(doc.ID, doc)

	logging.FromContext(r.Context()).Info("report ready",
		"report_id", doc.ID,
		"location", loc,
		"comparisons", len(doc.Comparisons),
	)

	w.Header().Set("Location", "/api/reports/"+doc.ID)
	s.writeDocument(w, r, http.StatusCreated, r.URL.Query().Get("format"), doc)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		infos, err := s.store.List(r.Context(), 0)
		if err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, infos)
		return
	}

	// Newest first, from the cache alone.
	keys := s.cache.Keys()
	infos := make([]sink.ReportInfo, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		doc, ok := s.cache.Peek(keys[i])
		if !ok {
			continue
		}
		infos = append(infos, sink.ReportInfo{
			ID:          doc.ID,
			BaseSource:  doc.BaseSource,
			KeyColumn:   doc.KeyColumn,
			GeneratedAt: doc.GeneratedAt,
		})
	}
	render.JSON(w, r, infos)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeDocument(w, r, http.StatusOK, r.URL.Query().Get("format"), doc)
}

func (s *Server) handleGetReportText(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeDocument(w, r, http.StatusOK, "text", doc)
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := sink.ReportPage(doc).Render(r.Context(), &buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// lookup finds the report named by the {id} URL parameter in the cache or
// the store, writing a 404 when neither has it.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*sink.Document, bool) {
	id := chi.URLParam(r, "id")
	if doc, ok := s.cache.Get(id); ok {
		return doc, true
	}

	if s.store != nil {
		doc, err := s.store.Get(r.Context(), id)
		if err == nil {
			s.cache.Add(id, doc)
			return doc, true
		}
		if !errors.Is(err, sink.ErrReportNotFound) {
			respondError(w, r, err, http.StatusInternalServerError)
			return nil, false
		}
	}

	respondError(w, r, fmt.Errorf("%s: %w", id, sink.ErrReportNotFound), http.StatusNotFound)
	return nil, false
}

// writeDocument writes doc as JSON, or in the named format when one is given.
func (s *Server) writeDocument(w http.ResponseWriter, r *http.Request, status int, format string, doc *sink.Document) {
	if format == "" || format == "json" {
		render.Status(r, status)
		render.JSON(w, r, doc)
		return
	}

	f, ok := sink.LookupFormat(format)
	if !ok {
		respondError(w, r, fmt.Errorf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := f.Render(&buf, doc); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) keyColumn(requested string) string {
	if k := strings.TrimSpace(requested); k != "" {
		return k
	}
	return s.cfg.Compare.KeyColumn
}

func (s *Server) sortMode(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return strings.ToLower(m)
	}
	return s.cfg.Compare.Sort
}
