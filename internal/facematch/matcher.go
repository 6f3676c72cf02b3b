package facematch

import "math"

// ScanStats describes a single exhaustive scan.
type ScanStats struct {
	Scanned int // candidates compared against the query
	Skipped int // candidates ignored because of a dimension mismatch
}

// FindBestMatch scans every candidate and returns the one nearest to query.
// Candidates whose dimensionality differs from the query are skipped, never matched.
// On equal distances the earliest candidate wins, so callers control the tie-break
// through the order of the slice. Returns nil when no candidate could be compared.
func FindBestMatch(query Descriptor, candidates []Candidate) (*Match, ScanStats) {
	var stats ScanStats
	var best *Match
	bestDistance := math.Inf(1)

	for i, c := range candidates {
		distance, err := EuclideanDistance(query, c.Descriptor)
		if err != nil {
			stats.Skipped++
			continue
		}
		stats.Scanned++

		// Strict comparison keeps the first of several equidistant candidates.
		if distance < bestDistance {
			bestDistance = distance
			best = &Match{UserID: c.UserID, Distance: distance, Index: i}
		}
	}

	return best, stats
}

// Decide runs FindBestMatch and applies the threshold. The nearest match is returned
// even when it does not qualify, so callers can log near misses.
func Decide(query Descriptor, candidates []Candidate, threshold float64) (best *Match, ok bool, stats ScanStats) {
	best, stats = FindBestMatch(query, candidates)
	return best, best.Qualifies(threshold), stats
}
