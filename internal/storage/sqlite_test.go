package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kakunin/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Complaints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := &models.ComplaintRecord{
		ID:          "c1",
		MediaID:     "m1",
		Description: "overflowing bin",
		ContentHash: "abc123",
		PHash:       "00ff00ff00ff00ff",
		Latitude:    12.9716,
		Longitude:   77.5946,
		Metadata:    map[string]string{"ward": "7"},
	}
	if err := store.SaveComplaint(ctx, c); err != nil {
		t.Fatal(err)
	}
	if c.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetComplaint(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "overflowing bin" || got.PHash != "00ff00ff00ff00ff" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata["ward"] != "7" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
	if got.Latitude != 12.9716 || got.Longitude != 77.5946 {
		t.Errorf("coordinates lost: %f, %f", got.Latitude, got.Longitude)
	}

	_, err = store.GetComplaint(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_Proofs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1 := &models.ProofRecord{
		ID:          "p1",
		ComplaintID: "c1",
		MediaID:     "m2",
		ContentHash: "def456",
		PHash:       "ff00ff00ff00ff00",
		Latitude:    12.9720,
		Longitude:   77.5950,
	}
	p2 := &models.ProofRecord{
		ID:          "p2",
		ComplaintID: "c1",
		MediaID:     "m3",
		ContentHash: "def456",
		PHash:       "ff00ff00ff00ff00",
		Recycled:    true,
		RecycledOf:  "p1",
	}
	if err := store.SaveProof(ctx, p1); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveProof(ctx, p2); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProof(ctx, "p2")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Recycled || got.RecycledOf != "p1" {
		t.Errorf("recycled fields lost: %+v", got)
	}
	gotP1, err := store.GetProof(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if gotP1.Latitude != 12.9720 || gotP1.Longitude != 77.5950 {
		t.Errorf("coordinates lost: %f, %f", gotP1.Latitude, gotP1.Longitude)
	}

	list, err := store.ListProofsByComplaint(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 proofs, got %d", len(list))
	}

	_, err = store.GetProof(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_ResultsAndReview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := &models.VerificationResult{
		ID:             "r1",
		ComplaintID:    "c1",
		ProofID:        "p1",
		HashSimilarity: 0.92,
		CompositeScore: 0.55,
		Recommendation: models.RecommendNeedsReview,
		Signals: []models.SignalUsage{
			{Name: "perceptual_hash", Value: 0.92, Weight: 0.25, Available: true},
		},
		Explanation: "composite 0.550 => NEEDS_REVIEW",
		State:       models.StatePersisted,
	}
	if err := store.SaveResult(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetResult(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompositeScore != 0.55 || got.Recommendation != models.RecommendNeedsReview {
		t.Errorf("got %+v", got)
	}
	if len(got.Signals) != 1 || got.Signals[0].Name != "perceptual_hash" {
		t.Errorf("signals lost in payload round trip: %+v", got.Signals)
	}

	pending, err := store.ListPendingReview(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "r1" {
		t.Fatalf("expected r1 pending, got %+v", pending)
	}

	when := time.Now()
	if err := store.FinalizeReview(ctx, "r1", "approved", when); err != nil {
		t.Fatal(err)
	}
	pending, _ = store.ListPendingReview(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("finalized result still pending")
	}
	got, _ = store.GetResult(ctx, "r1")
	if got.ReviewDecision != "approved" || got.ReviewedAt == nil {
		t.Errorf("review decision not recorded: %+v", got)
	}

	if err := store.FinalizeReview(ctx, "missing", "approved", when); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_PendingReviewExcludesDecided(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	approve := &models.VerificationResult{
		ID: "ra", ComplaintID: "c1", ProofID: "p1",
		Recommendation: models.RecommendApprove, CompositeScore: 0.9,
	}
	review := &models.VerificationResult{
		ID: "rb", ComplaintID: "c1", ProofID: "p2",
		Recommendation: models.RecommendNeedsReview, CompositeScore: 0.5,
	}
	_ = store.SaveResult(ctx, approve)
	_ = store.SaveResult(ctx, review)

	pending, err := store.ListPendingReview(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "rb" {
		t.Errorf("only NEEDS_REVIEW should be pending, got %+v", pending)
	}
}

func TestSQLiteStorage_StatusChecks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveStatusCheck(ctx, &models.StatusCheck{ID: "s1", ClientName: "mobile-app"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveStatusCheck(ctx, &models.StatusCheck{ID: "s2", ClientName: "ops-cron"}); err != nil {
		t.Fatal(err)
	}

	checks, err := store.ListStatusChecks(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(checks))
	}
}
