package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if errors.Is(err, search.ErrInvalidQuery) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.storage.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	bills, err := s.storage.ListBills(r.Context(), session.ID, limit)
	if err != nil {
		s.logger.Error("list bills failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bills == nil {
		bills = []*models.Bill{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"session": session, "bills": bills})
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	number := models.NormalizeBillNumber(chi.URLParam(r, "number"))
	bill, err := s.storage.GetBill(r.Context(), session.ID, number)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "bill not found")
		return
	}
	if err != nil {
		s.logger.Error("get bill failed", zap.String("bill_number", number), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, bill)
}

// sessionFromPath resolves {year}/{code}, writing the error response itself when it fails.
func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid year")
		return nil, false
	}
	code, err := models.ParseSessionCode(chi.URLParam(r, "code"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	session, err := s.storage.GetSession(r.Context(), year, code)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get session failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return session, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	billCount, err := s.storage.CountBills(ctx)
	if err != nil {
		s.logger.Error("status: count bills failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	embeddingCount, err := s.storage.CountEmbeddings(ctx)
	if err != nil {
		s.logger.Error("status: count embeddings failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"bills":             billCount,
		"embeddings":        embeddingCount,
		"vector_index_size": s.engine.VectorIndexSize(),
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"target_tokens":        s.config.Chunking.TargetTokens,
			"overlap_tokens":       s.config.Chunking.OverlapTokens,
			"concurrency":          s.config.Pipeline.Concurrency,
			"database_path":        s.config.Storage.DatabasePath,
		}
		diskBytes, err := storage.DiskUsageBytes(
			s.config.Storage.DatabasePath,
			s.config.Storage.BleveIndexPath,
			s.config.Storage.VectorIndexPath,
			s.config.Storage.BlobCachePath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
