package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloats(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		message string
		nonce   uint64
		cursor  uint64
		count   int
	}{
		{name: "single float", key: "test_key", message: "race", nonce: 1, cursor: 0, count: 1},
		{name: "multiple floats", key: "test_key", message: "race", nonce: 1, cursor: 0, count: 8},
		{name: "cursor boundary", key: "test_key", message: "race", nonce: 1, cursor: 31, count: 2},
		{name: "many rounds", key: "test_key", message: "race", nonce: 7, cursor: 0, count: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floats := Floats(tt.key, tt.message, tt.nonce, tt.cursor, tt.count)
			require.Len(t, floats, tt.count)
			for i, f := range floats {
				if f < 0 || f >= 1 {
					t.Errorf("float %d out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestHMACSourceReproducible(t *testing.T) {
	a := NewHMACSource("key", "msg", 3, 0)
	b := NewHMACSource("key", "msg", 3, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Float64(), b.Float64(), "draw %d", i)
	}

	c := NewHMACSource("key", "msg", 4, 0)
	d := NewHMACSource("key", "msg", 3, 0)
	assert.NotEqual(t, c.Float64(), d.Float64())
}

func TestHMACSourceMatchesCursor(t *testing.T) {
	all := Floats("key", "msg", 1, 0, 3)
	// Each float consumes 4 bytes, so cursor 8 starts at the third float.
	tail := Floats("key", "msg", 1, 8, 1)
	assert.Equal(t, all[2], tail[0])
}

func TestBytesToFloat(t *testing.T) {
	assert.Equal(t, 0.0, bytesToFloat([4]byte{0, 0, 0, 0}))
	assert.Equal(t, 0.5, bytesToFloat([4]byte{128, 0, 0, 0}))
	assert.Less(t, bytesToFloat([4]byte{255, 255, 255, 255}), 1.0)
}

func TestSequence(t *testing.T) {
	s := NewSequence(0.1, 0.2)
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 0.2, s.Float64())
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 3, s.Consumed())

	empty := NewSequence()
	assert.Equal(t, 0.0, empty.Float64())
}

func TestNewSourceRange(t *testing.T) {
	src := NewSource()
	for i := 0; i < 1000; i++ {
		f := src.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}

func TestIntnAndUniform(t *testing.T) {
	assert.Equal(t, 0, Intn(NewSequence(0), 5))
	assert.Equal(t, 4, Intn(NewSequence(0.9999), 5))
	assert.Equal(t, 2, Intn(NewSequence(0.5), 5))

	assert.InDelta(t, 0.5, Uniform(NewSequence(0), 0.5, 2.0), 1e-12)
	assert.InDelta(t, 1.25, Uniform(NewSequence(0.5), 0.5, 2.0), 1e-12)
}
