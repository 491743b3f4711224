package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/session"
	"github.com/hyperjump/marcador/internal/storage"
)

const defaultUploadName = "document.pdf"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	scale, err := parseScale(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("upload request", zap.String("name", name), zap.Int("bytes", len(content)))
	sess, err := s.manager.Open(r.Context(), name, content, scale)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, documentResponse(sess.Info()))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	s.logger.Debug("reload request", zap.String("id", id), zap.String("name", name))
	sess, err := s.manager.Reload(r.Context(), id, name, content)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, documentResponse(sess.Info()))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, documentResponse(sess.Info()))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "storage not enabled")
		return
	}
	offset, limit := queryInt(r, "offset", 0), queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.manager.Close(r.Context(), id); err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	if req.Blank() {
		s.logger.Debug("blank search term ignored", zap.String("id", sess.ID()))
	} else if req.Scale > 0 {
		if err := sess.SetScale(req.Scale); err != nil {
			s.respondSessionError(w, err)
			return
		}
	}
	start := time.Now()
	res, err := sess.Search(r.Context(), req.Term)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	resp := searchResponse(sess.ID(), res)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	recs, err := s.manager.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	if recs == nil {
		recs = []*models.SearchRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"searches": recs})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := sess.Export(r.Context(), &buf); err != nil {
		s.respondSessionError(w, err)
		return
	}
	name := s.config.Export.FileName
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("export response interrupted", zap.String("id", sess.ID()), zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"open_sessions": s.manager.Len(),
	}
	if s.storage != nil {
		docCount, err := s.storage.CountDocuments(r.Context())
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to count documents")
			return
		}
		resp["documents"] = docCount
	}
	configInfo := map[string]interface{}{
		"scale":         s.config.Render.Scale,
		"export_name":   s.config.Export.FileName,
		"database_path": s.config.Storage.DatabasePath,
	}
	if n, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
		resp["database_bytes"] = n
	}
	if n, err := storage.DirSize(s.config.Export.OutputDir); err == nil {
		resp["export_bytes"] = n
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// readUpload reads the PDF from a multipart "file" field or the raw body. On
// failure it writes the error response and returns ok == false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (name string, content []byte, ok bool) {
	limit := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	name = r.URL.Query().Get("name")
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			s.respondUploadError(w, ferr)
			return "", nil, false
		}
		defer file.Close()
		if name == "" {
			name = header.Filename
		}
		content, err = io.ReadAll(file)
	} else {
		content, err = io.ReadAll(r.Body)
	}
	if err != nil {
		s.respondUploadError(w, err)
		return "", nil, false
	}
	if len(content) == 0 {
		s.respondError(w, http.StatusBadRequest, "empty upload")
		return "", nil, false
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		name = defaultUploadName
	}
	return name, content, true
}

func (s *Server) respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload larger than %d MB", s.config.Server.MaxUploadMB))
		return
	}
	s.respondError(w, http.StatusBadRequest, "invalid upload: expected a PDF body or a multipart field named file")
}

// respondSessionError maps session errors to status codes. Export failures get
// a generic message; details are only logged.
func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, session.ErrInvalidDocument):
		s.respondError(w, http.StatusBadRequest, session.ErrInvalidDocument.Error())
	case errors.Is(err, highlight.ErrInvalidScale):
		s.respondError(w, http.StatusBadRequest, highlight.ErrInvalidScale.Error())
	case errors.Is(err, session.ErrNothingToExport):
		s.respondError(w, http.StatusConflict, session.ErrNothingToExport.Error())
	case errors.Is(err, session.ErrExport):
		s.respondError(w, http.StatusInternalServerError, session.ErrExport.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func parseScale(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("scale")
	if v == "" {
		return 0, nil
	}
	scale, err := strconv.ParseFloat(v, 64)
	if err != nil || !(scale > 0) {
		return 0, fmt.Errorf("invalid scale %q", v)
	}
	return scale, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func documentResponse(info session.Info) *models.DocumentResponse {
	resp := &models.DocumentResponse{
		ID:        info.ID,
		Name:      info.Name,
		PageCount: len(info.Pages),
		Scale:     info.Scale,
		Pages:     info.Pages,
		CreatedAt: info.CreatedAt,
	}
	if info.Result != nil {
		resp.Term = info.Result.Term
		resp.Total = info.Result.Total()
	}
	return resp
}

func searchResponse(id string, res *session.Result) *models.SearchResponse {
	total := res.Total()
	resp := &models.SearchResponse{
		DocumentID: id,
		Term:       res.Term,
		Scale:      res.Scale,
		Total:      total,
		Pages:      make([]models.PageResult, 0, len(res.Highlights)),
	}
	// a blank term searches nothing and is not reported as "no matches"
	if total == 0 && len(res.Highlights) > 0 {
		resp.NoMatches = true
		resp.Message = models.NoMatchesMessage
	}
	for _, p := range res.Highlights.Pages() {
		resp.Pages = append(resp.Pages, models.PageResult{Page: p, Highlights: res.Highlights[p]})
	}
	return resp
}
