// Package idgen produces fresh subject identifiers for new entities.
//
// Every entity type carries its own Generator, usually prefixed with the
// type's base URI. A type without a generator cannot create new records.
package idgen

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrExhausted is returned by FixedGenerator once every identifier is used.
var ErrExhausted = errors.New("identifiers exhausted")

// Generator produces a fresh, unique subject URI per call.
type Generator interface {
	Generate() (string, error)
}

// Kind names a generator strategy in mapping files.
type Kind string

// Generator kinds.
const (
	KindNone   Kind = ""
	KindUUIDv7 Kind = "uuid7"
	KindULID   Kind = "ulid"
)

// New returns the generator for kind, prefixing identifiers with prefix.
// KindNone returns a nil Generator.
func New(kind Kind, prefix string) (Generator, error) {
	switch kind {
	case KindNone:
		return nil, nil
	case KindUUIDv7:
		return UUIDv7Generator{Prefix: prefix}, nil
	case KindULID:
		return ULIDGenerator{Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown identifier generator %q", kind)
	}
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, making subjects
// sortable by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct {
	Prefix string
}

// Generate returns Prefix followed by a hyphenated UUIDv7.
func (g UUIDv7Generator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return g.Prefix + id.String(), nil
}

// ULIDGenerator generates lexicographically sortable ULID identifiers.
//
// Thread-safety: ulid.Make uses a process-wide monotonic entropy source
// guarded by a mutex, so ULIDGenerator is safe for concurrent use.
type ULIDGenerator struct {
	Prefix string
}

// Generate returns Prefix followed by a 26-character ULID.
func (g ULIDGenerator) Generate() (string, error) {
	return g.Prefix + ulid.Make().String(), nil
}

// SequenceGenerator returns Prefix followed by 1, 2, 3, ...
//
// The counter lives in memory and restarts with every process, so mapping
// files cannot select it. Scenario runs install it on a fresh store.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int64
}

// NewSequenceGenerator creates a sequence starting at 1.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix, next: 1}
}

// Generate returns the next identifier in the sequence.
func (g *SequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := fmt.Sprintf("%s%d", g.prefix, g.next)
	g.next++
	return id, nil
}

// FixedGenerator returns predetermined identifiers for testing.
//
// This enables deterministic test execution and golden comparison.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("http://example.org/p/1", "http://example.org/p/2")
//	gen.Generate() // "http://example.org/p/1", nil
//	gen.Generate() // "http://example.org/p/2", nil
//	gen.Generate() // "", ErrExhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined identifier, or ErrExhausted once
// all have been consumed. Exhaustion means a test issued more creates than
// it planned for.
func (g *FixedGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		return "", ErrExhausted
	}
	id := g.ids[g.idx]
	g.idx++
	return id, nil
}

// Remaining returns how many identifiers are left.
func (g *FixedGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids) - g.idx
}
