package database

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeDescriptor serializes a descriptor as little-endian float64 values,
// the BLOB layout used by the SQLite and MariaDB stores.
func EncodeDescriptor(descriptor []float64) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(len(descriptor) * 8)
	if err := binary.Write(buf, binary.LittleEndian, descriptor); err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDescriptor is the inverse of EncodeDescriptor.
func DecodeDescriptor(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("decode descriptor: blob length %d is not a multiple of 8", len(blob))
	}
	descriptor := make([]float64, len(blob)/8)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, descriptor); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return descriptor, nil
}

// ToVector narrows a descriptor to the float32 precision used by ANN indexes.
// Narrowed vectors only rank candidates; distances are always recomputed in float64.
func ToVector(descriptor []float64) []float32 {
	v := make([]float32, len(descriptor))
	for i, x := range descriptor {
		v[i] = float32(x)
	}
	return v
}
