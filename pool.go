package vtshaver

import (
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// releaseTimeout bounds how long Release waits for pool workers to exit
// once every submitted task has finished.
const releaseTimeout = 3 * time.Second

// Pool runs shave operations on a bounded set of background goroutines.
// Results are delivered in completion order.
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewPool returns a pool running at most size operations at once. A size
// of zero or less means no limit.
func NewPool(size int) (*Pool, error) {
	p := &Pool{}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v interface{}) {
		zap.L().Error("shave callback panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Shave validates opts and queues the operation. Validation errors are
// returned directly and done is not called. Otherwise done receives the
// result on a pool goroutine. Submission blocks while all workers are busy.
func (p *Pool) Shave(data []byte, opts Options, done func([]byte, error)) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		done(runShave(data, opts))
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

func runShave(data []byte, opts Options) (out []byte, err error) {
	defer func() {
		if v := recover(); v != nil {
			zap.L().Error("shave panicked", zap.Any("panic", v))
			out, err = nil, fmt.Errorf("%w: %v", ErrTileDecode, v)
		}
	}()
	return shave(data, opts)
}

// Running returns the number of operations currently in progress.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release waits for every queued operation to finish and stops the pool.
// The pool cannot be used afterwards.
func (p *Pool) Release() error {
	p.wg.Wait()
	return p.pool.ReleaseTimeout(releaseTimeout)
}
