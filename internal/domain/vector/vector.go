// Package vector holds the embedding arithmetic shared by storage and retrieval.
package vector

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coerce pads with zeros or truncates v to dim. The second result reports whether v was changed.
func Coerce(v []float32, dim int) ([]float32, bool) {
	if dim <= 0 || len(v) == dim {
		return v, false
	}
	out := make([]float32, dim)
	copy(out, v)
	return out, true
}

// Zero returns a zero vector of the given dimension.
func Zero(dim int) []float32 {
	return make([]float32, dim)
}

// Cosine returns dot(a,b) / (|a| * |b|).
// ok is false for zero-norm or length-mismatched inputs; such pairs must be skipped.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, sim)), true
}

// ToBytes encodes v as little-endian float32, the layout FT vector fields index.
func ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// FromBytes decodes a little-endian float32 blob.
func FromBytes(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// ErrUnparseable signals an embedding encoding that could not be decoded.
var ErrUnparseable = errors.New("unparseable embedding")

// Parse decodes a string-encoded embedding: a JSON array ("[0.1, 0.2]"),
// a JSON string wrapping such an array, or a bare comma-separated list.
func Parse(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrUnparseable
	}

	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return Parse(inner)
	}

	if strings.HasPrefix(s, "[") {
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err == nil && len(v) > 0 {
			return v, nil
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}

	parts := strings.Split(s, ",")
	v := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		v = append(v, float32(f))
	}
	return v, nil
}
