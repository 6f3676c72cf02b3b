package facematch

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyDescriptor is returned for a missing or zero-length descriptor.
	ErrEmptyDescriptor = errors.New("face descriptor is empty")

	// ErrDimensionMismatch is returned when two descriptors (or a descriptor and the
	// configured dimensionality) disagree in length.
	ErrDimensionMismatch = errors.New("face descriptor dimension mismatch")

	// ErrNonFinite is returned when a component is NaN, infinite or out of range.
	ErrNonFinite = errors.New("face descriptor contains an invalid value")
)

// ParseDescriptor converts raw JSON numbers into a Descriptor of exactly dim components.
// A dim of zero or less only requires the descriptor to be non-empty.
func ParseDescriptor(values []float64, dim int) (Descriptor, error) {
	if len(values) == 0 {
		return nil, ErrEmptyDescriptor
	}
	if dim > 0 && len(values) != dim {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrDimensionMismatch, dim, len(values))
	}

	d := make(Descriptor, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxComponent {
			return nil, fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
		d[i] = v
	}
	return d, nil
}

// Validate checks an already decoded descriptor against the expected dimensionality.
func (d Descriptor) Validate(dim int) error {
	if len(d) == 0 {
		return ErrEmptyDescriptor
	}
	if dim > 0 && len(d) != dim {
		return fmt.Errorf("%w: expected %d values, got %d", ErrDimensionMismatch, dim, len(d))
	}
	for i, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxComponent {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}

// Clone returns a copy that does not share the backing array.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}
