package services

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID prefixes used across the order pipeline.
const (
	OrderIDPrefix    = "ord"
	RefundIDPrefix   = "ref"
	NoteIDPrefix     = "note"
	ShipmentIDPrefix = "shp"
	EventIDPrefix    = "evt"
	AuditIDPrefix    = "aud"
	PaymentIDPrefix  = "pay"
)

// IDGenerator mints collision-free identifiers with a type prefix.
type IDGenerator interface {
	NewID(prefix string) string
}

// ULIDGenerator produces lexicographically sortable IDs like ord_01J8....
type ULIDGenerator struct {
	clock func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator constructs a generator seeded from crypto/rand.
func NewULIDGenerator(clock func() time.Time) *ULIDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &ULIDGenerator{
		clock:   clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewID returns a prefixed ULID. The monotonic entropy source is serialised
// because it is not safe for concurrent use.
func (g *ULIDGenerator) NewID(prefix string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(g.clock().UTC()), g.entropy)
	g.mu.Unlock()

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

// IDGeneratorFunc adapts ordinary functions to IDGenerator, primarily for tests.
type IDGeneratorFunc func(prefix string) string

// NewID invokes the wrapped function.
func (f IDGeneratorFunc) NewID(prefix string) string { return f(prefix) }
