package testutil

// FixedIDGenerator generates the same request ID every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same formula compiled with the same FixedIDGenerator produces
// byte-identical compilation records.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed request ID generator.
//
// If id is empty, Generate() returns "test-request-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements query.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
