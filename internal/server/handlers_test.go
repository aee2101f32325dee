package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/embedding"
	"github.com/hyperjump/kakunin/internal/manipulation"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/internal/pipeline"
	"github.com/hyperjump/kakunin/internal/semantic"
	"github.com/hyperjump/kakunin/internal/storage"
	"github.com/hyperjump/kakunin/internal/vector"
)

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Dimensions = 32

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	media, err := storage.NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	index, _ := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	logger := zap.NewNop()

	p := pipeline.New(
		cfg,
		embedding.NewMockEmbedder(cfg.Embedding.Dimensions),
		manipulation.NewDetector(&cfg.Manipulation, &manipulation.MockClassifier{FixedScore: 0.02}, logger),
		&semantic.MockJudge{Judgment: models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.9}},
		store,
		media,
		index,
		logger,
	)
	return NewServer(p, store, index, cfg, logger), store
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, fields map[string]string, imageBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if imageBytes != nil {
		part, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(imageBytes); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func postComplaint(t *testing.T, router http.Handler, imageBytes []byte) models.AssetRef {
	t.Helper()
	body, contentType := multipartUpload(t, map[string]string{
		"description": "pothole",
		"latitude":    "12.9716",
		"longitude":   "77.5946",
	}, imageBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("complaint ingest: got %d: %s", w.Code, w.Body.String())
	}
	var ref models.AssetRef
	if err := json.NewDecoder(w.Body).Decode(&ref); err != nil {
		t.Fatal(err)
	}
	return ref
}

func postProof(t *testing.T, router http.Handler, complaintID string, imageBytes []byte) models.AssetRef {
	t.Helper()
	body, contentType := multipartUpload(t, map[string]string{"latitude": "12.9716", "longitude": "77.5946"}, imageBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints/"+complaintID+"/proofs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("proof ingest: got %d: %s", w.Code, w.Body.String())
	}
	var ref models.AssetRef
	if err := json.NewDecoder(w.Body).Decode(&ref); err != nil {
		t.Fatal(err)
	}
	return ref
}

func TestIngestAndVerifyFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	img := testJPEG(t)

	complaint := postComplaint(t, router, img)
	proof := postProof(t, router, complaint.ID, img)

	payload, _ := json.Marshal(map[string]string{"complaint_id": complaint.ID, "proof_id": proof.ID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: got %d: %s", w.Code, w.Body.String())
	}
	var result models.VerificationResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Recommendation != models.RecommendApprove {
		t.Errorf("expected APPROVE for identical pair, got %s", result.Recommendation)
	}

	// Round trip through GET.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/verifications/"+result.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get result: got %d", w.Code)
	}
}

func TestIngestComplaint_MissingImage(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, map[string]string{"description": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestIngestComplaint_MissingCoordinates(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, map[string]string{"description": "x"}, testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without coordinates, got %d", w.Code)
	}
}

func TestIngestComplaint_InvalidLatitude(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, map[string]string{"latitude": "95.0", "longitude": "77.59"}, testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for latitude out of range, got %d", w.Code)
	}
}

func TestIngestComplaint_CorruptImage(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, map[string]string{"latitude": "12.97", "longitude": "77.59"}, []byte("definitely not a jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIngestProof_UnknownComplaint(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, map[string]string{"latitude": "12.97", "longitude": "77.59"}, testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints/nope/proofs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestVerify_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications", strings.NewReader(`{"complaint_id": ""}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestReviewQueueAndDecision(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()

	result := &models.VerificationResult{
		ID: "r1", ComplaintID: "c1", ProofID: "p1",
		Recommendation: models.RecommendNeedsReview, CompositeScore: 0.5,
	}
	if err := store.SaveResult(context.Background(), result); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list reviews: got %d", w.Code)
	}
	var out struct {
		Results []*models.VerificationResult `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].ID != "r1" {
		t.Fatalf("expected r1 pending, got %+v", out.Results)
	}

	payload, _ := json.Marshal(map[string]string{"decision": "approved"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/reviews/r1", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("review decision: got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil))
	_ = json.NewDecoder(w.Body).Decode(&out)
	if len(out.Results) != 0 {
		t.Errorf("decided result still pending: %+v", out.Results)
	}
}

func TestReviewDecision_Invalid(t *testing.T) {
	srv, _ := newTestServer(t)
	payload, _ := json.Marshal(map[string]string{"decision": "maybe"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/r1", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStatusChecks(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	payload, _ := json.Marshal(map[string]string{"client_name": "ops-cron"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/status-checks", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status check: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status-checks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status checks: got %d", w.Code)
	}
	var out struct {
		Checks []*models.StatusCheck `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Checks) != 1 || out.Checks[0].ClientName != "ops-cron" {
		t.Errorf("got %+v", out.Checks)
	}
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["vector_index_size"]; !ok {
		t.Error("status missing vector_index_size")
	}
}
