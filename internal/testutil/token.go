package testutil

// FixedTokenGenerator generates the same run token every time.
//
// Fixed tokens keep scenario traces byte-identical across runs, which is
// what golden snapshot comparison needs.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed run token generator.
//
// An empty token falls back to "test-run-default", the token scenario
// files get when they omit run_token.
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements journal.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
