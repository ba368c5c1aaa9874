package visibility

// ViewStateBuilderOption is a function that configures a ViewState during construction.
type ViewStateBuilderOption func(*ViewState)

// WithOcclusionBackend is an option builder that sets the occlusion query backend.
// Result may be called from several packets at once.
//
// Parameters:
//   - b: the backend
//
// Returns:
//   - ViewStateBuilderOption: a function that applies the backend option to a ViewState
func WithOcclusionBackend(b OcclusionQueryBackend) ViewStateBuilderOption {
	return func(s *ViewState) {
		s.backend = b
	}
}

// WithHZBTester is an option builder that sets the hierarchical depth tester used when
// HZB occlusion is configured. IsVisible may be called from several packets at once.
//
// Parameters:
//   - t: the tester
//
// Returns:
//   - ViewStateBuilderOption: a function that applies the tester option to a ViewState
func WithHZBTester(t HZBTester) ViewStateBuilderOption {
	return func(s *ViewState) {
		s.hzb = t
	}
}

// WithRandomSeed is an option builder that seeds the re-query random stream, overriding
// the configured seed.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - ViewStateBuilderOption: a function that applies the seed option to a ViewState
func WithRandomSeed(seed int64) ViewStateBuilderOption {
	return func(s *ViewState) {
		s.seed = seed
		s.seeded = true
	}
}
