package testutil

// FixedRunIDGenerator names every run the same.
//
// Unlike engine.FixedGenerator, which returns ids in sequence, this
// generator never runs out. Scenario runs use it so that two runs of the
// same scenario write identical checkpoints.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id. An empty id
// becomes "test-run".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
