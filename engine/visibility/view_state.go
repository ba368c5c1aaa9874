package visibility

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

type occlusionKey struct {
	id  primitive.ComponentID
	sub int
}

type occlusionHistory struct {
	// pending is a ring of queries indexed by frame modulo the buffered frame count.
	pending []QueryHandle

	hzbIndex uint32
	hzbFrame uint64
	hzbValid bool

	lastVisibleTime      float64
	lastConsideredTime   float64
	lastPixelsPercentage float32
	grouped              bool
}

func newOcclusionHistory(bufferedFrames int) *occlusionHistory {
	return &occlusionHistory{pending: make([]QueryHandle, bufferedFrames)}
}

// ViewState is the persistent state of one viewport: fade timers, occlusion query
// history and the random stream that decides re-queries. It is not safe for use by two
// views at once.
type ViewState struct {
	fades     map[primitive.ComponentID]*fadeState
	histories map[occlusionKey]*occlusionHistory

	frame          uint64
	prevFrame      uint64
	lastRenderTime float64
	prevOrigin     mgl32.Vec3
	hasPrevOrigin  bool

	backend OcclusionQueryBackend
	hzb     HZBTester
	seed    int64
	seeded  bool

	logger *log.Entry
}

// NewViewState creates a ViewState configured with the given options.
//
// Parameters:
//   - options: functional options to configure the state
//
// Returns:
//   - *ViewState: the state
func NewViewState(options ...ViewStateBuilderOption) *ViewState {
	s := &ViewState{
		fades:     make(map[primitive.ComponentID]*fadeState),
		histories: make(map[occlusionKey]*occlusionHistory),
		logger:    log.WithField("component", "view_state"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Frame returns the number of frames computed with this state.
func (s *ViewState) Frame() uint64 {
	return s.frame
}

// LastRenderTime returns the time of the last computed frame.
func (s *ViewState) LastRenderTime() float64 {
	return s.lastRenderTime
}

// NumOcclusionHistories returns the number of tracked (primitive, subquery) histories.
func (s *ViewState) NumOcclusionHistories() int {
	return len(s.histories)
}

// NumFadingStates returns the number of tracked fade states.
func (s *ViewState) NumFadingStates() int {
	return len(s.fades)
}

// OcclusionBackend returns the query backend, or nil.
func (s *ViewState) OcclusionBackend() OcclusionQueryBackend {
	return s.backend
}

// TrimOcclusionHistory releases queries of histories not considered since minQueryTime and
// forgets histories not considered since minHistoryTime.
//
// Parameters:
//   - now: the current time
//   - minHistoryTime: histories last considered before this are removed
//   - minQueryTime: histories last considered before this release their queries
func (s *ViewState) TrimOcclusionHistory(now, minHistoryTime, minQueryTime float64) {
	for key, h := range s.histories {
		if h.lastConsideredTime < minQueryTime {
			s.releaseQueries(h)
		}
		if h.lastConsideredTime < minHistoryTime || h.lastConsideredTime > now {
			s.releaseQueries(h)
			delete(s.histories, key)
		}
	}
}

// ForgetPrimitive drops every fade state and occlusion history of a removed primitive.
//
// Parameters:
//   - id: the removed primitive
func (s *ViewState) ForgetPrimitive(id primitive.ComponentID) {
	delete(s.fades, id)
	for key, h := range s.histories {
		if key.id == id {
			s.releaseQueries(h)
			delete(s.histories, key)
		}
	}
}

// Release returns every outstanding query to the backend and clears all history.
func (s *ViewState) Release() {
	for _, h := range s.histories {
		s.releaseQueries(h)
	}
	clear(s.histories)
	clear(s.fades)
}

func (s *ViewState) releaseQueries(h *occlusionHistory) {
	for i, q := range h.pending {
		if q != 0 {
			if s.backend != nil {
				s.backend.Release(q)
			}
			h.pending[i] = 0
		}
	}
}

func (s *ViewState) beginFrame() {
	s.prevFrame = s.frame
	s.frame++
}

func (s *ViewState) endFrame(v *View) {
	s.lastRenderTime = v.Time
	s.prevOrigin = v.Origin
	s.hasPrevOrigin = true
}

// packetRand returns the random stream of one packet. It depends only on the seed, the
// frame and the packet index, so results do not depend on scheduling.
func (s *ViewState) packetRand(defaultSeed int64, packetIndex int) *rand.Rand {
	seed := defaultSeed
	if s.seeded {
		seed = s.seed
	}
	return rand.New(rand.NewPCG(uint64(seed), s.frame<<20|uint64(packetIndex)))
}
