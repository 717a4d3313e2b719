// Package codec resolves compression algorithm names and levels into concrete
// zip entry methods.
package codec

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned for unknown algorithm names.
var ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm, supported algorithms are: Zstd, Bzip2, Deflated, Lz4")

// Zip method identifiers.
const (
	MethodDeflated uint16 = 8
	MethodBzip2    uint16 = 12
	MethodZstd     uint16 = 93
	// MethodLz4 is a private method id; only this tool reads it back.
	MethodLz4 uint16 = 0x4C34
)

// Algorithm names accepted by Resolve.
const (
	Zstd     = "Zstd"
	Bzip2    = "Bzip2"
	Deflated = "Deflated"
	Lz4      = "Lz4"
)

// Codec is a resolved algorithm with a validated level.
type Codec struct {
	Name   string
	Method uint16
	Level  int
}

func (c Codec) String() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.Level)
}

type levelRange struct {
	method       uint16
	min, max     int64
	defaultLevel int
}

var algorithms = map[string]levelRange{
	Zstd:     {method: MethodZstd, min: -7, max: 22, defaultLevel: 3},
	Bzip2:    {method: MethodBzip2, min: 0, max: 9, defaultLevel: 6},
	Deflated: {method: MethodDeflated, min: 0, max: 9, defaultLevel: 6},
	Lz4:      {method: MethodLz4, min: 0, max: 9, defaultLevel: 0},
}

// Resolve maps an algorithm name and requested level to a Codec.
// Out-of-range levels fall back to the algorithm default; only unknown
// names fail.
func Resolve(algorithm string, level int64) (Codec, error) {
	r, ok := algorithms[algorithm]
	if !ok {
		return Codec{}, fmt.Errorf("resolve %q: %w", algorithm, ErrUnsupportedAlgorithm)
	}

	valid := r.defaultLevel
	if level >= r.min && level <= r.max {
		valid = int(level)
	}

	return Codec{Name: algorithm, Method: r.method, Level: valid}, nil
}

// Methods returns every method id this package can compress and decompress.
func Methods() []uint16 {
	return []uint16{MethodDeflated, MethodBzip2, MethodZstd, MethodLz4}
}

// Spec is a caller-supplied algorithm name and level, resolved per entry.
type Spec struct {
	Algorithm string
	Level     int64
}

// Resolve resolves s into a Codec.
func (s Spec) Resolve() (Codec, error) {
	return Resolve(s.Algorithm, s.Level)
}
