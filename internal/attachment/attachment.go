// Package attachment validates uploaded file content and names the blobs it
// is stored under.
//
// Content type is sniffed from the bytes, never taken from the filename, and
// must be on an allow-list. Blob keys are UUIDv7 so they sort by creation time.
package attachment

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// DefaultAllowedTypes is the image allow-list used when none is configured.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/bmp"}

// DefaultMaxBytes caps a single upload when no limit is configured.
const DefaultMaxBytes = 10 << 20

// KeyGenerator names stored blobs.
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 blob keys.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... for tests and
// golden scenarios.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator with the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next key.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Config configures a Validator. Zero values select the defaults.
type Config struct {
	AllowedTypes []string
	MaxBytes     int64
	Keys         KeyGenerator
}

// Validator checks uploads against the allow-list and hands out blob keys.
type Validator struct {
	allowed  []string
	maxBytes int64
	keys     KeyGenerator
}

// New creates a Validator.
func New(cfg Config) *Validator {
	v := &Validator{
		allowed:  slices.Clone(cfg.AllowedTypes),
		maxBytes: cfg.MaxBytes,
		keys:     cfg.Keys,
	}
	if len(v.allowed) == 0 {
		v.allowed = slices.Clone(DefaultAllowedTypes)
	}
	if v.maxBytes <= 0 {
		v.maxBytes = DefaultMaxBytes
	}
	if v.keys == nil {
		v.keys = UUIDv7Generator{}
	}
	return v
}

// Validate sniffs the content type and returns it if allowed. Empty,
// oversized or disallowed content fails with an INVALID_COMMAND error.
func (v *Validator) Validate(filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", ledger.NewInvalidCommand("file", 0, fmt.Sprintf("%q is empty", filename))
	}
	if int64(len(content)) > v.maxBytes {
		return "", ledger.NewInvalidCommand("file", 0,
			fmt.Sprintf("%q exceeds %d bytes", filename, v.maxBytes))
	}

	mt := mimetype.Detect(content)
	for _, allowed := range v.allowed {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", ledger.NewInvalidCommand("file", 0,
		fmt.Sprintf("%q has disallowed content type %s", filename, mt.String()))
}

// NewKey returns a fresh blob key.
func (v *Validator) NewKey() string {
	return v.keys.Generate()
}

// AllowedTypes returns a copy of the allow-list.
func (v *Validator) AllowedTypes() []string {
	return slices.Clone(v.allowed)
}
