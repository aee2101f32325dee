// Package models defines core data structures for image assets, verdicts, and verification results.
package models

import "time"

// AssetKind distinguishes complaint (before) images from proof (after) images.
type AssetKind string

const (
	AssetComplaint AssetKind = "complaint"
	AssetProof     AssetKind = "proof"
)

// AssetRef identifies an ingested image asset by record ID and content hash.
type AssetRef struct {
	ID          string `json:"id"`
	MediaID     string `json:"media_id"`
	ContentHash string `json:"content_hash"`
}

// ImageAsset is an ingested image after normalization. Immutable once created;
// referenced thereafter by its content hash.
type ImageAsset struct {
	MediaID     string    `json:"media_id"`
	Kind        AssetKind `json:"kind"`
	ContentHash string    `json:"content_hash"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	PHash       string    `json:"phash"`
	Thumbnail   []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ComplaintRecord is a stored complaint with its before-state image reference.
type ComplaintRecord struct {
	ID          string            `json:"complaint_id"`
	MediaID     string            `json:"media_id"`
	Description string            `json:"description"`
	ContentHash string            `json:"content_hash"`
	PHash       string            `json:"phash"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ProofRecord is a stored proof (after-state) image reference tied to a complaint.
type ProofRecord struct {
	ID          string    `json:"proof_id"`
	ComplaintID string    `json:"complaint_id"`
	MediaID     string    `json:"media_id"`
	ContentHash string    `json:"content_hash"`
	PHash       string    `json:"phash"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	// Recycled is set when the proof embedding near-duplicates an earlier
	// proof submitted for a different complaint.
	Recycled   bool      `json:"recycled"`
	RecycledOf string    `json:"recycled_of,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusCheck is a liveness audit record submitted by a client.
type StatusCheck struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}
