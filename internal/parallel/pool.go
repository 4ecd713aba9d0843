package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// MaxWorkers bounds the number of goroutines a single pool may own.
const MaxWorkers = 1024

var (
	// ErrPoolClosed is returned when work is submitted to a closed pool.
	ErrPoolClosed = errors.New("parallel: worker pool is closed")

	// ErrTooManyWorkers is returned by NewWorkerPool when the requested
	// worker count exceeds MaxWorkers.
	ErrTooManyWorkers = errors.New("parallel: worker count exceeds limit")
)

// PanicError records a job that panicked on a worker.
type PanicError struct {
	// Value is the value passed to panic.
	Value any

	// Stack is the worker stack captured at recovery time.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: job panicked: %v", e.Value)
}

// WorkerPool is a fixed set of goroutines executing independent jobs.
//
// Each worker owns a queue. Submit places a job on the shortest queue and
// workers steal from each other when their own queue is empty, which keeps
// slow tiles from serializing a batch behind one worker.
//
// Submit and Wait are meant to be driven from one goroutine (the frame
// thread). Jobs may run on any worker in any order; each submitted job runs
// exactly once.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// pending counts submitted jobs that have not been retired.
	pending sync.WaitGroup

	// submitMu keeps Close from racing a Submit that already passed the
	// running check.
	submitMu sync.RWMutex

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	errMu sync.Mutex
	errs  []error
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) (*WorkerPool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	// Buffer size: a few slots per worker hides submit latency.
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p, nil
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			work()

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				work()
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// run executes one job and retires it, recording a panic instead of
// letting it take the worker down.
func (p *WorkerPool) run(job func()) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			p.errMu.Lock()
			p.errs = append(p.errs, &PanicError{Value: r, Stack: debug.Stack()})
			p.errMu.Unlock()
		}
	}()
	job()
}

// Submit sends a single job to the worker with the shortest queue.
// It blocks while every queue is full.
func (p *WorkerPool) Submit(job func()) error {
	if job == nil {
		return nil
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if !p.running.Load() {
		return ErrPoolClosed
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	p.pending.Add(1)
	p.workQueues[minIdx] <- func() { p.run(job) }
	return nil
}

// Wait blocks until every submitted job has been retired. It returns the
// panics recorded since the previous Wait joined into one error, or nil.
func (p *WorkerPool) Wait() error {
	p.pending.Wait()

	p.errMu.Lock()
	errs := p.errs
	p.errs = nil
	p.errMu.Unlock()

	return errors.Join(errs...)
}

// ExecuteAll distributes work across workers and waits for all to complete.
// If a submit fails part way, the already submitted work is still waited for.
func (p *WorkerPool) ExecuteAll(work []func()) error {
	for _, fn := range work {
		if err := p.Submit(fn); err != nil {
			return errors.Join(err, p.Wait())
		}
	}
	return p.Wait()
}

// Close gracefully shuts down the pool.
// It stops accepting new work, runs whatever is still queued,
// and then joins all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.submitMu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.submitMu.Unlock()
		return
	}
	close(p.done)
	p.submitMu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the total number of work items currently queued.
// This is an approximation as queues can change while iterating.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}

// Scope creates a pool, hands it to fn and always waits for the submitted
// work and closes the pool before returning, including when fn fails or
// panics. Worker failures are joined with fn's error.
func Scope(workers int, fn func(p *WorkerPool) error) (err error) {
	p, err := NewWorkerPool(workers)
	if err != nil {
		return err
	}
	defer p.Close()
	defer func() {
		if werr := p.Wait(); werr != nil {
			err = errors.Join(err, werr)
		}
	}()
	return fn(p)
}
