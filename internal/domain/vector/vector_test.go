package vector

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name        string
		in          []float32
		dim         int
		wantLen     int
		wantChanged bool
	}{
		{"exact", []float32{1, 2, 3}, 3, 3, false},
		{"pad", []float32{1, 2}, 4, 4, true},
		{"truncate", []float32{1, 2, 3, 4, 5}, 3, 3, true},
		{"empty pads", nil, 2, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Coerce(tt.in, tt.dim)
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
		})
	}

	padded, _ := Coerce([]float32{1, 2}, 4)
	if padded[0] != 1 || padded[1] != 2 || padded[2] != 0 || padded[3] != 0 {
		t.Errorf("padding must keep prefix and fill zeros, got %v", padded)
	}
}

func TestCosine_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := make([]float32, 16)
		b := make([]float32, 16)
		for j := range a {
			a[j] = float32(rng.NormFloat64())
			b[j] = float32(rng.NormFloat64())
		}
		sim, ok := Cosine(a, b)
		if !ok {
			t.Fatalf("unexpected skip for non-zero vectors")
		}
		if sim < -1 || sim > 1 || math.IsNaN(sim) {
			t.Fatalf("similarity %f out of bounds", sim)
		}
	}
}

func TestCosine_KnownValues(t *testing.T) {
	if sim, _ := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(sim-1) > 1e-9 {
		t.Errorf("identical vectors: got %f", sim)
	}
	if sim, _ := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(sim+1) > 1e-9 {
		t.Errorf("opposite vectors: got %f", sim)
	}
	if sim, _ := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(sim) > 1e-9 {
		t.Errorf("orthogonal vectors: got %f", sim)
	}
}

func TestCosine_ZeroNormSkipped(t *testing.T) {
	if _, ok := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3}); ok {
		t.Error("zero-norm vector must be skipped")
	}
	if _, ok := Cosine([]float32{1, 2}, []float32{1, 2, 3}); ok {
		t.Error("length mismatch must be skipped")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := FromBytes(ToBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: got %f want %f", i, out[i], in[i])
		}
	}
	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []float32
		wantErr bool
	}{
		{"json array", "[0.5, 1, -2]", []float32{0.5, 1, -2}, false},
		{"quoted json array", `"[0.5,1]"`, []float32{0.5, 1}, false},
		{"bare list", "0.5, 1", []float32{0.5, 1}, false},
		{"garbage", "[a, b]", nil, true},
		{"empty", "  ", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Errorf("expected ErrUnparseable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: got %f want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}
