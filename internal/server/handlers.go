package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/imaging"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/internal/storage"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleIngestComplaint(w http.ResponseWriter, r *http.Request) {
	imageBytes, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	description := r.FormValue("description")
	lat, lon, ok := s.readCoordinates(w, r)
	if !ok {
		return
	}
	metadata := map[string]string{}
	if ward := r.FormValue("ward"); ward != "" {
		metadata["ward"] = ward
	}
	if category := r.FormValue("category"); category != "" {
		metadata["category"] = category
	}

	ref, err := s.pipeline.IngestComplaint(r.Context(), imageBytes, description, lat, lon, metadata)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleIngestProof(w http.ResponseWriter, r *http.Request) {
	complaintID := chi.URLParam(r, "id")
	imageBytes, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	lat, lon, ok := s.readCoordinates(w, r)
	if !ok {
		return
	}
	ref, err := s.pipeline.IngestProof(r.Context(), imageBytes, complaintID, lat, lon)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ref)
}

type verifyRequest struct {
	ComplaintID string `json:"complaint_id"`
	ProofID     string `json:"proof_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ComplaintID == "" || req.ProofID == "" {
		s.respondError(w, http.StatusBadRequest, "complaint_id and proof_id are required")
		return
	}
	s.logger.Debug("verification request",
		zap.String("complaint_id", req.ComplaintID),
		zap.String("proof_id", req.ProofID),
	)
	result, err := s.pipeline.Verify(r.Context(), req.ComplaintID, req.ProofID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, imaging.ErrDecode) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("verification failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.storage.GetResult(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "result not found")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListPendingReview(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	results, err := s.storage.ListPendingReview(r.Context(), limit)
	if err != nil {
		s.logger.Error("list pending review failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*models.VerificationResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type reviewDecisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reviewDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Decision != "approved" && req.Decision != "rejected" {
		s.respondError(w, http.StatusBadRequest, "decision must be approved or rejected")
		return
	}
	if err := s.storage.FinalizeReview(r.Context(), id, req.Decision, time.Now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "result not found")
			return
		}
		s.logger.Error("review decision failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "decision": req.Decision})
}

type statusCheckRequest struct {
	ClientName string `json:"client_name"`
}

func (s *Server) handleCreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req statusCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientName == "" {
		s.respondError(w, http.StatusBadRequest, "client_name is required")
		return
	}
	check := &models.StatusCheck{
		ID:         uuid.NewString(),
		ClientName: req.ClientName,
		Timestamp:  time.Now(),
	}
	if err := s.storage.SaveStatusCheck(r.Context(), check); err != nil {
		s.logger.Error("status check save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, check)
}

func (s *Server) handleListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.storage.ListStatusChecks(r.Context(), 50)
	if err != nil {
		s.logger.Error("list status checks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if checks == nil {
		checks = []*models.StatusCheck{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"checks": checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"vector_index_size": s.index.Size(),
		"config": map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_grid_rows":      s.config.Imaging.GridRows,
			"chunk_grid_cols":      s.config.Imaging.GridCols,
			"database_path":        s.config.Storage.DatabasePath,
			"media_path":           s.config.Storage.MediaPath,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.MediaPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readUpload extracts the "image" part of a multipart upload. Writes the
// error response itself when it returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image file is required")
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read image")
		return nil, false
	}
	if len(data) > maxUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "image too large")
		return nil, false
	}
	return data, true
}

// readCoordinates parses the required latitude/longitude form fields. Writes
// the error response itself when it returns ok=false.
func (s *Server) readCoordinates(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil || lat < -90 || lat > 90 {
		s.respondError(w, http.StatusBadRequest, "latitude is required and must be a valid coordinate")
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil || lon < -180 || lon > 180 {
		s.respondError(w, http.StatusBadRequest, "longitude is required and must be a valid coordinate")
		return 0, 0, false
	}
	return lat, lon, true
}

func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imaging.ErrDecode):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
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
