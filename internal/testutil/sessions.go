package testutil

// FixedSessionGenerator returns the same session ID every time.
//
// Unlike engine.FixedGenerator, which hands out IDs in sequence and panics
// when exhausted, this generator never runs out, so one instance can seed
// any number of engines in a table test.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent
// use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id. An empty id becomes
// "test-session".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate implements engine.SessionIDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
