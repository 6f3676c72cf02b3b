// Package auth implements face registration and login on top of an identity store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/observe"
)

// Options configures the decision policy of a Service.
type Options struct {
	Threshold float64 // maximum Euclidean distance (exclusive), defaults to facematch.DefaultThreshold
	Dimension int     // expected descriptor length, defaults to facematch.DefaultDimension

	// Index enables candidate pre-selection. When nil every login scans the whole store.
	// Candidates from the index are re-read from the store before scoring and a login
	// is only rejected after a full scan.
	Index      database.NeighborIndex
	Candidates int // neighbours taken from Index, defaults to database.HNSWDefaultCandidates
}

// Result describes a successful login.
type Result struct {
	UserID   string
	Distance float64
}

// Service registers and authenticates faces.
type Service struct {
	store      database.IdentityWriter
	obs        *observe.Observer
	threshold  float64
	dimension  int
	index      database.NeighborIndex
	candidates int

	// writeMu orders store writes with index updates so the index applies
	// registrations in the same order as the store.
	writeMu sync.Mutex
}

// NewService creates a service over store.
func NewService(store database.IdentityWriter, obs *observe.Observer, opts Options) *Service {
	if !(opts.Threshold > 0) || math.IsInf(opts.Threshold, 1) {
		opts.Threshold = facematch.DefaultThreshold
	}
	if opts.Dimension <= 0 {
		opts.Dimension = facematch.DefaultDimension
	}
	if opts.Candidates <= 0 {
		opts.Candidates = database.HNSWDefaultCandidates
	}
	if obs == nil {
		obs = observe.Discard()
	}

	return &Service{
		store:      store,
		obs:        obs,
		threshold:  opts.Threshold,
		dimension:  opts.Dimension,
		index:      opts.Index,
		candidates: opts.Candidates,
	}
}

// Threshold returns the configured match threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Dimension returns the expected descriptor length.
func (s *Service) Dimension() int {
	return s.dimension
}

// Register stores or overwrites the descriptor of userID.
func (s *Service) Register(ctx context.Context, userID string, values []float64) (*database.Identity, error) {
	ctx, span := s.obs.StartSpan(ctx, "auth.Register")
	defer span.End()

	userID = facematch.NormalizeUserID(userID)
	if userID == "" {
		span.SetStatus(codes.Error, "missing user ID")
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	span.SetAttributes(attribute.String("user_id", userID))

	descriptor, err := facematch.ParseDescriptor(values, s.dimension)
	if err != nil {
		span.SetStatus(codes.Error, "invalid descriptor")
		return nil, fmt.Errorf("%w: faceDescriptor: %w", ErrInvalidInput, err)
	}

	identity, err := s.put(ctx, userID, descriptor)
	if err != nil {
		span.RecordError(err)
		s.obs.Log().Error().Err(err).Str("user_id", userID).Msg("failed to store face descriptor")
		if errors.Is(err, database.ErrInvalidIdentity) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("storing descriptor: %w", err)
	}

	s.obs.Log().Info().
		Str("user_id", userID).
		Str("enrollment_id", identity.EnrollmentID).
		Msg("face registered")
	return identity, nil
}

// put writes the descriptor and feeds the stored identity to a mutable index.
func (s *Service) put(ctx context.Context, userID string, descriptor facematch.Descriptor) (*database.Identity, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	identity, err := s.store.Put(ctx, userID, descriptor)
	if err != nil {
		return nil, err
	}
	if idx, ok := s.index.(database.MutableIndex); ok && !idx.Add(*identity) {
		s.obs.Log().Warn().Str("user_id", userID).Msg("descriptor not added to index")
	}
	return identity, nil
}

// Login finds the enrolled identity nearest to the query descriptor and accepts it
// only if its distance is strictly below the threshold. Among equally distant
// identities the one enrolled first wins.
func (s *Service) Login(ctx context.Context, values []float64) (*Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "auth.Login")
	defer span.End()

	query, err := facematch.ParseDescriptor(values, s.dimension)
	if err != nil {
		span.SetStatus(codes.Error, "invalid descriptor")
		return nil, fmt.Errorf("%w: faceDescriptor: %w", ErrInvalidInput, err)
	}

	indexed, indexStats, drift := s.indexedMatch(ctx, query)
	if indexed != nil {
		if drift {
			s.resyncIndex(ctx)
		}
		return s.accept(span, indexed, indexStats), nil
	}

	identities, err := s.store.All(ctx)
	if err != nil {
		err = fmt.Errorf("loading identities: %w", err)
		span.RecordError(err)
		s.obs.Log().Error().Err(err).Msg("failed to load enrolled identities")
		return nil, err
	}
	if len(identities) == 0 {
		return nil, s.fail(span, &FailureError{Reason: ReasonEmptyStore, Nearest: math.Inf(1)})
	}

	best, ok, stats := facematch.Decide(query, toCandidates(identities), s.threshold)
	if ok && s.index != nil {
		s.obs.Log().Warn().Str("user_id", best.UserID).Msg("index missed an enrolled identity")
		drift = true
	}
	if drift {
		s.resyncIndex(ctx)
	}

	if !ok {
		failure := &FailureError{Reason: ReasonNoMatch, Nearest: math.Inf(1)}
		if best != nil {
			failure.Nearest = best.Distance
		}
		s.recordScan(span, stats)
		return nil, s.fail(span, failure)
	}
	return s.accept(span, best, stats), nil
}

// indexedMatch scores the candidates pre-selected by the index against their current
// store records. It returns a qualifying match or nil; drift reports candidates whose
// indexed version no longer matches the store.
func (s *Service) indexedMatch(ctx context.Context, query facematch.Descriptor) (best *facematch.Match, stats facematch.ScanStats, drift bool) {
	if s.index == nil {
		return nil, stats, false
	}

	identities, err := s.index.Nearest(ctx, query, s.candidates)
	if err != nil {
		s.obs.Log().Warn().Err(err).Msg("index search failed, falling back to full scan")
		return nil, stats, false
	}

	// An index that is itself a store already returns current records.
	if _, authoritative := s.index.(database.IdentityReader); !authoritative {
		identities, drift, err = s.refresh(ctx, identities)
		if err != nil {
			s.obs.Log().Warn().Err(err).Msg("failed to refresh index candidates, falling back to full scan")
			return nil, stats, false
		}
	}
	if len(identities) == 0 {
		return nil, stats, drift
	}

	best, ok, stats := facematch.Decide(query, toCandidates(identities), s.threshold)
	if !ok {
		return nil, stats, drift
	}
	return best, stats, drift
}

// refresh replaces indexed identities with the store's current records.
func (s *Service) refresh(ctx context.Context, indexed []database.Identity) ([]database.Identity, bool, error) {
	current := make([]database.Identity, 0, len(indexed))
	drift := false
	for i := range indexed {
		identity, err := s.store.Get(ctx, indexed[i].UserID)
		if err != nil {
			return nil, false, fmt.Errorf("loading identity %s: %w", indexed[i].UserID, err)
		}
		if identity == nil {
			drift = true
			continue
		}
		if identity.EnrollmentID != indexed[i].EnrollmentID {
			drift = true
		}
		current = append(current, *identity)
	}
	return current, drift, nil
}

// resyncIndex reconciles a syncable index with the full store contents.
func (s *Service) resyncIndex(ctx context.Context) {
	idx, ok := s.index.(database.SyncableIndex)
	if !ok {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	identities, err := s.store.All(ctx)
	if err != nil {
		s.obs.Log().Warn().Err(err).Msg("failed to resync index")
		return
	}
	changed := idx.Sync(identities)
	s.obs.Log().Info().Int("changed", changed).Msg("index resynced with store")
}

func (s *Service) accept(span trace.Span, best *facematch.Match, stats facematch.ScanStats) *Result {
	s.recordScan(span, stats)
	span.SetAttributes(attribute.String("user_id", best.UserID))
	s.obs.Log().Info().
		Str("user_id", best.UserID).
		Str("distance", formatDistance(best.Distance)).
		Msg("face login succeeded")
	return &Result{UserID: best.UserID, Distance: best.Distance}
}

func (s *Service) recordScan(span trace.Span, stats facematch.ScanStats) {
	span.SetAttributes(
		attribute.Int("candidates.scanned", stats.Scanned),
		attribute.Int("candidates.skipped", stats.Skipped),
	)
	if stats.Skipped > 0 {
		s.obs.Log().Warn().
			Int("skipped", stats.Skipped).
			Int("dimension", s.dimension).
			Msg("ignored enrolled descriptors with a different dimensionality")
	}
}

func (s *Service) fail(span trace.Span, failure *FailureError) error {
	span.SetStatus(codes.Error, string(failure.Reason))
	s.obs.Log().Info().
		Str("reason", string(failure.Reason)).
		Str("nearest_distance", formatDistance(failure.Nearest)).
		Msg("face login rejected")
	return failure
}

// Identities returns every enrolled identity in enrollment order.
func (s *Service) Identities(ctx context.Context) ([]database.Identity, error) {
	identities, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	return identities, nil
}

// Count returns the number of enrolled identities.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting identities: %w", err)
	}
	return n, nil
}

func toCandidates(identities []database.Identity) []facematch.Candidate {
	candidates := make([]facematch.Candidate, len(identities))
	for i := range identities {
		candidates[i] = facematch.Candidate{
			UserID:     identities[i].UserID,
			Descriptor: identities[i].Descriptor,
		}
	}
	return candidates
}

func formatDistance(d float64) string {
	if math.IsInf(d, 1) {
		return "none"
	}
	return strconv.FormatFloat(d, 'f', 4, 64)
}
