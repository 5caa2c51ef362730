package transport

import (
	"github.com/panjf2000/ants/v2"
)

var _ Scheduler = new(Pool)

// Pool is a Scheduler backed by a bounded goroutine pool.
type Pool struct {
	pool *ants.Pool
}

func NewPool(size int) (*Pool, error) {
	pool, err := ants.NewPool(size, ants.WithPreAlloc(false), ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}

	return &Pool{pool: pool}, nil
}

func (p *Pool) Submit(task func()) error {
	return p.pool.Submit(task)
}

// Running returns the number of tasks being executed at the moment.
func (p *Pool) Running() int {
	return p.pool.Running()
}

func (p *Pool) Release() {
	p.pool.Release()
}

// Inline runs the tasks right in place. Mostly useful in tests.
type Inline struct{}

func (Inline) Submit(task func()) error {
	task()
	return nil
}
