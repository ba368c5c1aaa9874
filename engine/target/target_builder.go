package target

// PoolBuilderOption is a functional option for configuring the target pool.
type PoolBuilderOption func(*pool)

// WithBudgetBytes caps the bytes the pool may hold. Zero means unbounded.
//
// Parameters:
//   - bytes: the budget
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithBudgetBytes(bytes uint64) PoolBuilderOption {
	return func(p *pool) {
		p.budget = bytes
	}
}

// WithIdleFrames sets how many frames an unused target stays pooled. Values below 1 are
// treated as 1.
//
// Parameters:
//   - frames: the idle frame count
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithIdleFrames(frames int) PoolBuilderOption {
	return func(p *pool) {
		p.idleFrames = uint64(max(frames, 1))
	}
}
