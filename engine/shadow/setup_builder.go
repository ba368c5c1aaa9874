package shadow

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	log "github.com/sirupsen/logrus"
)

// SetupBuilderOption is a functional option for configuring a Setup.
type SetupBuilderOption func(*setupImpl)

// WithConfig sets the configuration shadow setup reads.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithConfig(cfg config.Config) SetupBuilderOption {
	return func(s *setupImpl) {
		s.cfg = cfg
	}
}

// WithRunner sets the packet runner caster gathering runs on.
//
// Parameters:
//   - r: the runner, shared with visibility
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithRunner(r packet.Runner) SetupBuilderOption {
	return func(s *setupImpl) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithAllocator sets where shadow depth targets come from.
//
// Parameters:
//   - a: the target allocator
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithAllocator(a target.Allocator) SetupBuilderOption {
	return func(s *setupImpl) {
		if a != nil {
			s.alloc = a
		}
	}
}

// WithLogger sets the log entry shadow setup writes to.
//
// Parameters:
//   - entry: the log entry
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithLogger(entry *log.Entry) SetupBuilderOption {
	return func(s *setupImpl) {
		if entry != nil {
			s.logger = entry
		}
	}
}
