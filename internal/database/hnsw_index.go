package database

import (
	"bytes"
	"cmp"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndex wraps an HNSW graph over identity descriptors using Euclidean distance.
// It narrows a login down to a handful of candidates; the final decision is always
// made by an exact re-score of those candidates.
//
// Graph nodes are keyed by enrollment ID. Re-registration adds a new node and leaves
// the old one in the graph; it is filtered out on lookup.
type HNSWIndex struct {
	graph      *hnsw.Graph[string]
	identities map[string]*Identity // Maps user ID to its current identity
	live       map[string]string    // Maps graph key (enrollment ID) to user ID
	dim        int
	mu         sync.RWMutex
	path       string // Path to save/load index
}

// NewHNSWIndex creates a new empty index for descriptors of length dim.
func NewHNSWIndex(dim int) *HNSWIndex {
	return &HNSWIndex{
		identities: make(map[string]*Identity),
		live:       make(map[string]string),
		dim:        dim,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given identities.
// Identities whose dimensionality differs from the index are skipped and counted.
func (h *HNSWIndex) Build(identities []Identity) (skipped int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.identities = make(map[string]*Identity, len(identities))
	h.live = make(map[string]string, len(identities))

	for i := range identities {
		if !h.addLocked(identities[i]) {
			skipped++
		}
	}
	return skipped
}

// Add inserts or replaces a single identity. Returns false if it was not indexable.
func (h *HNSWIndex) Add(identity Identity) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(identity)
}

func (h *HNSWIndex) addLocked(identity Identity) bool {
	if len(identity.Descriptor) == 0 || len(identity.Descriptor) != h.dim || identity.EnrollmentID == "" {
		return false
	}

	if h.graph == nil {
		h.graph = newGraph()
	}

	if current, ok := h.identities[identity.UserID]; ok {
		delete(h.live, current.EnrollmentID)
	}

	stored := identity.Clone()
	if _, exists := h.graph.Lookup(stored.EnrollmentID); !exists {
		h.graph.Add(hnsw.MakeNode(stored.EnrollmentID, ToVector(stored.Descriptor)))
	}
	h.identities[stored.UserID] = &stored
	h.live[stored.EnrollmentID] = stored.UserID
	return true
}

// stale returns the number of graph nodes no longer backing a current identity.
func (h *HNSWIndex) stale() int {
	if h.graph == nil {
		return 0
	}
	return max(h.graph.Len()-len(h.live), 0)
}

// Search returns up to k identities nearest to query, ordered by enrollment sequence
// so that the exact matcher applies the same tie-break as a full scan.
func (h *HNSWIndex) Search(query []float64, k int) ([]Identity, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(query) != h.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), h.dim)
	}
	if h.graph == nil || h.graph.Len() == 0 {
		return nil, nil
	}

	neighbors := h.graph.Search(ToVector(query), k+h.stale())

	result := make([]Identity, 0, k)
	for _, n := range neighbors {
		userID, ok := h.live[n.Key]
		if !ok {
			continue
		}
		result = append(result, h.identities[userID].Clone())
		if len(result) == k {
			break
		}
	}

	slices.SortFunc(result, func(a, b Identity) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}

// Nearest implements NeighborIndex.
func (h *HNSWIndex) Nearest(_ context.Context, query []float64, k int) ([]Identity, error) {
	return h.Search(query, k)
}

var _ SyncableIndex = (*HNSWIndex)(nil)

// Sync brings the index in line with the store contents after loading it from disk.
// Identities are compared by enrollment ID, which changes on every registration;
// users missing from identities are dropped. Returns the number of identities
// (re)indexed or dropped.
func (h *HNSWIndex) Sync(identities []Identity) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	present := make(map[string]struct{}, len(identities))
	changed := 0
	for i := range identities {
		present[identities[i].UserID] = struct{}{}
		current, ok := h.identities[identities[i].UserID]
		if ok && current.EnrollmentID == identities[i].EnrollmentID {
			continue
		}
		if h.addLocked(identities[i]) {
			changed++
		}
	}

	for userID, identity := range h.identities {
		if _, ok := present[userID]; !ok {
			delete(h.live, identity.EnrollmentID)
			delete(h.identities, userID)
			changed++
		}
	}
	return changed
}

// Count returns the number of indexed identities.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities)
}

// Dim returns the descriptor dimensionality the index accepts.
func (h *HNSWIndex) Dim() int {
	return h.dim
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Path returns the configured persistence path (empty if none).
func (h *HNSWIndex) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Save persists the index to its configured path. A no-op without a path.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	path := h.path
	h.mu.RUnlock()

	if path == "" {
		return nil
	}
	return h.SaveWithMetadata(path)
}

// SaveWithMetadata writes the graph, a .meta file and an .identities file next to path.
func (h *HNSWIndex) SaveWithMetadata(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".identities")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	identities := make([]Identity, 0, len(h.identities))
	var maxSeq int64
	for _, identity := range h.identities {
		identities = append(identities, *identity)
		maxSeq = max(maxSeq, identity.Seq)
	}

	metadata := HNSWIndexMetadata{
		IdentityCount: len(identities),
		MaxSeq:        maxSeq,
		Dim:           h.dim,
		BuildTime:     time.Now(),
		Version:       hnswMetadataVersion,
	}
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(identities); err != nil {
		return fmt.Errorf("failed to encode identities: %w", err)
	}
	if err := os.WriteFile(path+".identities", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write identities file: %w", err)
	}

	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// ErrIndexNotFound is returned by Load when no index has been saved at the path yet.
var ErrIndexNotFound = errors.New("HNSW index file not found")

// Load reads a previously saved index and remembers path for later saves.
func (h *HNSWIndex) Load(path string) error {
	metadata, err := LoadHNSWMetadata(path)
	if errors.Is(err, os.ErrNotExist) {
		h.SetPath(path)
		return ErrIndexNotFound
	}
	if err != nil {
		return err
	}
	if metadata.Version != hnswMetadataVersion {
		return fmt.Errorf("unsupported HNSW index version %d", metadata.Version)
	}
	if metadata.Dim != h.dim {
		return fmt.Errorf("HNSW index has %d dimensions, expected %d", metadata.Dim, h.dim)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".identities") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read identities file: %w", err)
	}
	var identities []Identity
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&identities); err != nil {
		return fmt.Errorf("failed to decode identities: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path
	h.graph = saved.Graph
	h.graph.Distance = hnsw.EuclideanDistance
	h.identities = make(map[string]*Identity, len(identities))
	h.live = make(map[string]string, len(identities))
	for i := range identities {
		h.identities[identities[i].UserID] = &identities[i]
		h.live[identities[i].EnrollmentID] = identities[i].UserID
	}
	return nil
}
