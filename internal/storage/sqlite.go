// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kakunin/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS complaints (
		id TEXT PRIMARY KEY,
		media_id TEXT NOT NULL,
		description TEXT,
		content_hash TEXT NOT NULL,
		phash TEXT NOT NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_complaints_content_hash ON complaints(content_hash);

	CREATE TABLE IF NOT EXISTS proofs (
		id TEXT PRIMARY KEY,
		complaint_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		phash TEXT NOT NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		recycled INTEGER NOT NULL DEFAULT 0,
		recycled_of TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (complaint_id) REFERENCES complaints(id)
	);

	CREATE INDEX IF NOT EXISTS idx_proofs_complaint_id ON proofs(complaint_id);
	CREATE INDEX IF NOT EXISTS idx_proofs_content_hash ON proofs(content_hash);

	CREATE TABLE IF NOT EXISTS verification_results (
		id TEXT PRIMARY KEY,
		complaint_id TEXT NOT NULL,
		proof_id TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		composite_score REAL NOT NULL,
		payload TEXT NOT NULL,
		review_decision TEXT,
		reviewed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_complaint_id ON verification_results(complaint_id);
	CREATE INDEX IF NOT EXISTS idx_results_recommendation ON verification_results(recommendation);

	CREATE TABLE IF NOT EXISTS status_checks (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveComplaint inserts a complaint record.
func (s *SQLiteStorage) SaveComplaint(ctx context.Context, c *models.ComplaintRecord) error {
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO complaints (id, media_id, description, content_hash, phash, latitude, longitude, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MediaID, c.Description, c.ContentHash, c.PHash, c.Latitude, c.Longitude, string(metadataJSON), c.CreatedAt,
	)
	return err
}

// GetComplaint returns a complaint by ID.
func (s *SQLiteStorage) GetComplaint(ctx context.Context, id string) (*models.ComplaintRecord, error) {
	var c models.ComplaintRecord
	var metadataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, media_id, description, content_hash, phash, latitude, longitude, metadata, created_at
		 FROM complaints WHERE id = ?`, id,
	).Scan(&c.ID, &c.MediaID, &c.Description, &c.ContentHash, &c.PHash, &c.Latitude, &c.Longitude, &metadataJSON, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}

// SaveProof inserts a proof record.
func (s *SQLiteStorage) SaveProof(ctx context.Context, p *models.ProofRecord) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	recycled := 0
	if p.Recycled {
		recycled = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proofs (id, complaint_id, media_id, content_hash, phash, latitude, longitude, recycled, recycled_of, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ComplaintID, p.MediaID, p.ContentHash, p.PHash, p.Latitude, p.Longitude, recycled, p.RecycledOf, p.CreatedAt,
	)
	return err
}

// GetProof returns a proof by ID.
func (s *SQLiteStorage) GetProof(ctx context.Context, id string) (*models.ProofRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, complaint_id, media_id, content_hash, phash, latitude, longitude, recycled, recycled_of, created_at
		 FROM proofs WHERE id = ?`, id)
	p, err := scanProof(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proof %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProofsByComplaint returns all proofs submitted for a complaint, newest first.
func (s *SQLiteStorage) ListProofsByComplaint(ctx context.Context, complaintID string) ([]*models.ProofRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, complaint_id, media_id, content_hash, phash, latitude, longitude, recycled, recycled_of, created_at
		 FROM proofs WHERE complaint_id = ? ORDER BY created_at DESC`, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var proofs []*models.ProofRecord
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProof(row rowScanner) (*models.ProofRecord, error) {
	var p models.ProofRecord
	var recycled int
	var recycledOf sql.NullString
	if err := row.Scan(&p.ID, &p.ComplaintID, &p.MediaID, &p.ContentHash, &p.PHash, &p.Latitude, &p.Longitude, &recycled, &recycledOf, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Recycled = recycled != 0
	p.RecycledOf = recycledOf.String
	return &p, nil
}

// SaveResult inserts a verification result. The full result is stored as a
// JSON payload; the columns queried by the review surface are denormalized.
func (s *SQLiteStorage) SaveResult(ctx context.Context, r *models.VerificationResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verification_results (id, complaint_id, proof_id, recommendation, composite_score, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ComplaintID, r.ProofID, string(r.Recommendation), r.CompositeScore, string(payload), r.CreatedAt,
	)
	return err
}

// GetResult returns a verification result by ID.
func (s *SQLiteStorage) GetResult(ctx context.Context, id string) (*models.VerificationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, review_decision, reviewed_at FROM verification_results WHERE id = ?`, id)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListPendingReview returns NEEDS_REVIEW results with no reviewer decision yet,
// oldest first.
func (s *SQLiteStorage) ListPendingReview(ctx context.Context, limit int) ([]*models.VerificationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, review_decision, reviewed_at FROM verification_results
		 WHERE recommendation = ? AND review_decision IS NULL
		 ORDER BY created_at ASC LIMIT ?`,
		string(models.RecommendNeedsReview), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*models.VerificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// FinalizeReview records a human decision on a result.
func (s *SQLiteStorage) FinalizeReview(ctx context.Context, resultID, decision string, reviewedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_results SET review_decision = ?, reviewed_at = ? WHERE id = ?`,
		decision, reviewedAt, resultID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("result %s: %w", resultID, ErrNotFound)
	}
	return nil
}

func scanResult(row rowScanner) (*models.VerificationResult, error) {
	var payload string
	var decision sql.NullString
	var reviewedAt sql.NullTime
	if err := row.Scan(&payload, &decision, &reviewedAt); err != nil {
		return nil, err
	}
	var r models.VerificationResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result payload: %w", err)
	}
	if decision.Valid {
		r.ReviewDecision = decision.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return &r, nil
}

// SaveStatusCheck inserts a status check record.
func (s *SQLiteStorage) SaveStatusCheck(ctx context.Context, c *models.StatusCheck) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_checks (id, client_name, timestamp) VALUES (?, ?, ?)`,
		c.ID, c.ClientName, c.Timestamp)
	return err
}

// ListStatusChecks returns the most recent status checks.
func (s *SQLiteStorage) ListStatusChecks(ctx context.Context, limit int) ([]*models.StatusCheck, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_name, timestamp FROM status_checks ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checks []*models.StatusCheck
	for rows.Next() {
		var c models.StatusCheck
		if err := rows.Scan(&c.ID, &c.ClientName, &c.Timestamp); err != nil {
			return nil, err
		}
		checks = append(checks, &c)
	}
	return checks, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
