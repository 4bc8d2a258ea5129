package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// Source yields uniform floats in [0, 1). Games depend only on this contract,
// never on a global generator, so tests can feed fixed sequences.
type Source interface {
	Float64() float64
}

// mathSource wraps a math/rand/v2 generator behind a mutex.
type mathSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a Source seeded from the runtime's entropy.
func NewSource() Source {
	return &mathSource{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (s *mathSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sequence replays a fixed list of floats, wrapping around at the end.
// An empty Sequence always returns 0.
type Sequence struct {
	floats []float64
	pos    int
}

// NewSequence creates a Sequence over floats.
func NewSequence(floats ...float64) *Sequence {
	return &Sequence{floats: floats}
}

// Float64 returns the next float in the sequence.
func (s *Sequence) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	f := s.floats[s.pos%len(s.floats)]
	s.pos++
	return f
}

// Consumed reports how many floats have been drawn.
func (s *Sequence) Consumed() int {
	return s.pos
}

// HMACSource generates floats from an HMAC-SHA256 byte stream keyed by
// (key, message, nonce). The same inputs always yield the same floats.
type HMACSource struct {
	key          string
	message      string
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewHMACSource creates a reproducible source positioned at cursor.
func NewHMACSource(key, message string, nonce uint64, cursor uint64) *HMACSource {
	s := &HMACSource{
		key:          key,
		message:      message,
		nonce:        nonce,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}
	s.generateRound()
	return s
}

// next returns the next byte, rolling into a new HMAC round every 32 bytes.
func (s *HMACSource) next() byte {
	if s.currentPos >= 32 {
		s.currentRound++
		s.currentPos = 0
		s.generateRound()
	}

	b := s.buffer[s.currentPos]
	s.currentPos++
	return b
}

// Float64 consumes exactly 4 bytes.
func (s *HMACSource) Float64() float64 {
	return bytesToFloat([4]byte{s.next(), s.next(), s.next(), s.next()})
}

func (s *HMACSource) generateRound() {
	h := hmac.New(sha256.New, []byte(s.key))
	fmt.Fprintf(h, "%s:%d:%d", s.message, s.nonce, s.currentRound)
	copy(s.buffer[:], h.Sum(nil))
}

// bytesToFloat maps 4 bytes to [0, 1) as sum(b[i] / 256^(i+1)).
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// Floats draws count floats from a fresh HMACSource.
func Floats(key, message string, nonce uint64, cursor uint64, count int) []float64 {
	src := NewHMACSource(key, message, nonce, cursor)
	floats := make([]float64, count)
	for i := range floats {
		floats[i] = src.Float64()
	}
	return floats
}

// Uniform maps a [0,1) draw onto [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Intn maps a [0,1) draw onto [0, n). n must be positive.
func Intn(src Source, n int) int {
	i := int(math.Floor(src.Float64() * float64(n)))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
