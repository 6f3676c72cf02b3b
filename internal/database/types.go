package database

import (
	"time"
)

// Identity is an enrolled user together with their face descriptor.
type Identity struct {
	UserID       string
	Descriptor   []float64
	EnrollmentID string    // regenerated on every registration, identifies this descriptor version
	Seq          int64     // enrollment order, fixed on first registration
	EnrolledAt   time.Time // first registration
	UpdatedAt    time.Time // last registration
}

// Dim returns the descriptor dimensionality.
func (i *Identity) Dim() int {
	return len(i.Descriptor)
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() Identity {
	out := *i
	if i.Descriptor != nil {
		out.Descriptor = make([]float64, len(i.Descriptor))
		copy(out.Descriptor, i.Descriptor)
	}
	return out
}

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	IdentityCount int       `json:"identity_count"`
	MaxSeq        int64     `json:"max_seq"`
	Dim           int       `json:"dim"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const hnswMetadataVersion = 2
