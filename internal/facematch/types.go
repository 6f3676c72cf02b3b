// Package facematch provides face descriptor validation, distance and matching primitives
// shared between the auth service, the stores and the CLI.
package facematch

// DefaultDimension is the descriptor length produced by the face-api.js recognition model.
const DefaultDimension = 128

// DefaultThreshold is the maximum Euclidean distance (exclusive) still treated as a match.
const DefaultThreshold = 0.4

// MaxComponent bounds the absolute value of a single descriptor component.
// Recognition models emit values well inside [-1, 1]; anything beyond this is garbage input.
const MaxComponent = 100.0

// Descriptor is a face embedding of fixed dimensionality. Components keep the full
// precision of the JSON numbers they were decoded from.
type Descriptor []float64

// Candidate is an enrolled descriptor considered during matching.
type Candidate struct {
	UserID     string
	Descriptor Descriptor
}

// Match is the nearest candidate found for a query descriptor.
type Match struct {
	UserID   string
	Distance float64
	Index    int // position of the candidate in the scanned slice
}

// Qualifies reports whether the match is strictly closer than threshold.
func (m *Match) Qualifies(threshold float64) bool {
	return m != nil && m.Distance < threshold
}
