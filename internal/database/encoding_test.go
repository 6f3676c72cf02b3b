package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorEncoding(t *testing.T) {
	descriptor := []float64{0.1, -0.25, 3.5, 0}

	blob, err := EncodeDescriptor(descriptor)
	require.NoError(t, err)
	assert.Len(t, blob, 32)

	decoded, err := DecodeDescriptor(blob)
	require.NoError(t, err)
	assert.Equal(t, descriptor, decoded, "float64 components must round-trip bit for bit")
}

func TestDecodeDescriptor_BadLength(t *testing.T) {
	_, err := DecodeDescriptor([]byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestCheckPut(t *testing.T) {
	assert.NoError(t, CheckPut("alice", []float64{0.1}))
	assert.ErrorIs(t, CheckPut("", []float64{0.1}), ErrInvalidIdentity)
	assert.ErrorIs(t, CheckPut("   ", []float64{0.1}), ErrInvalidIdentity)
	assert.ErrorIs(t, CheckPut("alice", nil), ErrInvalidIdentity)
}
