// Package packet runs independent units of frame work on the shared worker pool and
// joins them before returning.
package packet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	log "github.com/sirupsen/logrus"
)

// ErrPanicked is wrapped by the error Run returns when a packet panicked.
var ErrPanicked = errors.New("packet: panicked")

// Runner executes packets. Packets of one Run call must not share mutable state; each
// writes only its own outputs, which the caller merges after Run returns.
type Runner interface {
	// Run calls fn once for every index in [0, count) and waits for all calls to finish.
	// A panicking packet does not stop the others. Run must not be called from inside a packet.
	//
	// Parameters:
	//   - count: the number of packets
	//   - fn: the packet body
	//
	// Returns:
	//   - error: nil, or the joined ErrPanicked errors of the packets that panicked
	Run(count int, fn func(index int)) error

	// Workers returns the number of workers packets are spread over.
	//
	// Returns:
	//   - int: the worker count
	Workers() int

	// Close stops the workers. Run executes inline afterwards.
	Close()
}

type runner struct {
	mu      sync.Mutex
	pool    worker.DynamicWorkerPool
	workers int
	logger  *log.Entry
}

var _ Runner = &runner{}

// NewRunner creates a Runner backed by a dynamic worker pool. A worker count of 1 or
// less runs every packet inline on the calling goroutine.
//
// Parameters:
//   - workers: the maximum number of concurrent packets
//
// Returns:
//   - Runner: the runner
func NewRunner(workers int) Runner {
	r := &runner{
		workers: max(workers, 1),
		logger:  log.WithField("component", "packet"),
	}
	if r.workers > 1 {
		r.pool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)
	}
	return r
}

func (r *runner) Run(count int, fn func(index int)) error {
	if count <= 0 {
		return nil
	}
	errs := make([]error, count)

	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()

	if pool == nil || count == 1 {
		for i := range count {
			errs[i] = runOne(i, fn)
		}
		return r.join(errs)
	}

	// pool.Wait blocks until workers idle out, so a WaitGroup is the per-call barrier.
	var wg sync.WaitGroup
	wg.Add(count)
	for i := range count {
		idx := i
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				errs[idx] = runOne(idx, fn)
				return nil, errs[idx]
			},
		})
	}
	wg.Wait()
	return r.join(errs)
}

func (r *runner) Workers() int {
	return r.workers
}

func (r *runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		r.pool.Stop()
		r.pool = nil
	}
}

func (r *runner) join(errs []error) error {
	err := errors.Join(errs...)
	if err != nil {
		r.logger.WithError(err).Error("packet failed")
	}
	return err
}

func runOne(index int, fn func(int)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: packet %d: %v", ErrPanicked, index, rec)
		}
	}()
	fn(index)
	return nil
}

// Split returns the number of packets needed to cover n items at size items per packet,
// and a function mapping a packet index to its [start, end) item range.
//
// Parameters:
//   - n: the number of items
//   - size: the items per packet
//
// Returns:
//   - int: the packet count
//   - func(int) (int, int): the range of a packet
func Split(n, size int) (int, func(int) (int, int)) {
	size = max(size, 1)
	count := (n + size - 1) / size
	return count, func(p int) (int, int) {
		start := p * size
		return start, min(start+size, n)
	}
}
