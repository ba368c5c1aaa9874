// Package target pools the depth render targets shadow setup allocates each frame.
// No GPU objects are created here; a Target is the reservation a draw stage later binds
// to a real texture.
package target

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrBudgetExceeded is returned when a request does not fit the pool's byte budget
	// even after evicting idle targets.
	ErrBudgetExceeded = errors.New("target: budget exceeded")

	// ErrInvalidDesc is returned for descs with zero size or an unsupported format.
	ErrInvalidDesc = errors.New("target: invalid desc")
)

// DefaultIdleFrames is how many frames an unused target stays pooled before it is destroyed.
const DefaultIdleFrames = 2

// Target is a pooled render target reservation.
type Target interface {
	// ID returns the pool-unique identifier of the target.
	//
	// Returns:
	//   - uint64: the ID
	ID() uint64

	// Desc returns the description the target was created from.
	//
	// Returns:
	//   - common.RenderTargetDesc: the desc
	Desc() common.RenderTargetDesc

	// SizeInBytes returns the memory footprint of the target.
	//
	// Returns:
	//   - uint64: the size
	SizeInBytes() uint64
}

// Allocator hands out render targets.
type Allocator interface {
	// FindFree returns a target matching desc, reusing an idle one when possible.
	//
	// Parameters:
	//   - desc: the wanted target
	//
	// Returns:
	//   - Target: the target, in use until released
	//   - error: ErrInvalidDesc or ErrBudgetExceeded
	FindFree(desc common.RenderTargetDesc) (Target, error)

	// Release returns a target to the pool. Transient targets are released by EndFrame.
	//
	// Parameters:
	//   - t: the target
	Release(t Target)

	// BytesInUse returns the bytes of every target the pool currently holds.
	//
	// Returns:
	//   - uint64: the size
	BytesInUse() uint64

	// EndFrame releases transient targets and destroys targets idle for too long.
	EndFrame()
}

type pooledTarget struct {
	id        uint64
	desc      common.RenderTargetDesc
	size      uint64
	inUse     bool
	lastFrame uint64
}

var _ Target = &pooledTarget{}

func (t *pooledTarget) ID() uint64 {
	return t.id
}

func (t *pooledTarget) Desc() common.RenderTargetDesc {
	return t.desc
}

func (t *pooledTarget) SizeInBytes() uint64 {
	return t.size
}

type pool struct {
	mu         sync.Mutex
	budget     uint64
	idleFrames uint64
	targets    []*pooledTarget
	allocated  uint64
	frame      uint64
	nextID     uint64
	logger     *log.Entry
}

var _ Allocator = &pool{}

// NewPool creates an Allocator with the given options. Without a budget the pool is unbounded.
//
// Parameters:
//   - options: functional options to configure the pool
//
// Returns:
//   - Allocator: the pool
func NewPool(options ...PoolBuilderOption) Allocator {
	p := &pool{
		idleFrames: DefaultIdleFrames,
		nextID:     1,
		logger:     log.WithFields(log.Fields{"component": "target"}),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *pool) FindFree(desc common.RenderTargetDesc) (Target, error) {
	if desc.Faces == 0 {
		desc.Faces = 1
	}
	size := desc.SizeInBytes()
	if desc.Width == 0 || desc.Height == 0 || size == 0 {
		return nil, fmt.Errorf("%w: %s %dx%d format %d", ErrInvalidDesc, desc.Name, desc.Width, desc.Height, uint32(desc.Format))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := desc.Key()
	for _, t := range p.targets {
		if !t.inUse && t.desc.Key() == key {
			t.inUse = true
			t.lastFrame = p.frame
			t.desc.Name = desc.Name
			return t, nil
		}
	}

	if p.budget > 0 && p.allocated+size > p.budget {
		p.evictIdle(size)
		if p.allocated+size > p.budget {
			return nil, fmt.Errorf("%w: %s needs %d bytes, %d of %d in use", ErrBudgetExceeded, desc.Name, size, p.allocated, p.budget)
		}
	}

	t := &pooledTarget{id: p.nextID, desc: desc, size: size, inUse: true, lastFrame: p.frame}
	p.nextID++
	p.targets = append(p.targets, t)
	p.allocated += size
	return t, nil
}

// evictIdle destroys idle targets, least recently used first, until need bytes fit.
func (p *pool) evictIdle(need uint64) {
	idle := make([]*pooledTarget, 0, len(p.targets))
	for _, t := range p.targets {
		if !t.inUse {
			idle = append(idle, t)
		}
	}
	sort.SliceStable(idle, func(i, j int) bool { return idle[i].lastFrame < idle[j].lastFrame })
	for _, t := range idle {
		if p.allocated+need <= p.budget {
			break
		}
		p.destroy(t)
	}
}

func (p *pool) destroy(t *pooledTarget) {
	for i, existing := range p.targets {
		if existing == t {
			p.targets = append(p.targets[:i], p.targets[i+1:]...)
			p.allocated -= t.size
			return
		}
	}
}

func (p *pool) Release(t Target) {
	pt, ok := t.(*pooledTarget)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pt.inUse = false
	pt.lastFrame = p.frame
}

func (p *pool) BytesInUse() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

func (p *pool) EndFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.targets[:0]
	for _, t := range p.targets {
		if t.inUse && !t.desc.Persistent {
			t.inUse = false
		}
		if !t.inUse && p.frame-t.lastFrame >= p.idleFrames {
			p.allocated -= t.size
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(p.targets); i++ {
		p.targets[i] = nil
	}
	p.targets = kept
	p.frame++
}
