// Package pool provides a pool of latent workers for parallelizing
// candidate searches, most importantly the safe-prime search during
// group generation.
package pool

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// searchAlone runs f, which may return nil, until count elements are found.
func searchAlone(f func() interface{}, count int) []interface{} {
	results := make([]interface{}, count)
	for i := 0; i < len(results); i++ {
		results[i] = nil
		for ; results[i] == nil; results[i] = f() {
		}
	}
	return results
}

// command asks a worker to keep evaluating a function until enough
// successful results have been produced.
type command struct {
	// The number of result slots left to claim.
	slots *int64
	// The number of claimed slots not yet filled in. Search waits on this
	// one, so a result is always fully stored before it is counted.
	done *int64
	// wake belongs to the one Search call that issued the command.
	// Concurrent searches never share a wakeup channel, so no search can
	// consume a signal meant for another.
	wake    chan<- struct{}
	f       func() interface{}
	results []interface{}
}

// worker keeps querying f while slots remain, claiming one per success.
func worker(commands <-chan command) {
	for c := range commands {
		for atomic.LoadInt64(c.slots) > 0 {
			res := c.f()
			if res == nil {
				continue
			}
			i := atomic.AddInt64(c.slots, -1)
			if i < 0 {
				break
			}
			c.results[i] = res
			atomic.AddInt64(c.done, -1)
			// The send is best effort: if the buffer is full, other wakeups
			// are already pending and the searcher will re-check the counter.
			select {
			case c.wake <- struct{}{}:
			default:
			}
		}
	}
}

// Pool represents a pool of workers, used for parallelizing searches.
//
// Functions taking a *Pool work with a nil receiver, doing the equivalent
// work on the current goroutine instead.
type Pool struct {
	// The common channel used to send commands to the workers.
	//
	// This effectively makes a work stealing pool.
	commands chan command
	// The number of workers we've created.
	workerCount int
}

// NewPool creates a new pool with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	var p Pool

	if count <= 0 {
		count = runtime.NumCPU()
	}

	p.commands = make(chan command)
	p.workerCount = count

	for i := 0; i < count; i++ {
		go worker(p.commands)
	}

	return &p
}

// TearDown cleanly tears down a pool, stopping its workers.
func (p *Pool) TearDown() {
	close(p.commands)
}

// Search queries the function f until count successes are found.
//
// f is supposed to try a single candidate, returning nil if that candidate
// isn't successful.
//
// The result will be an array containing the first count successes.
func (p *Pool) Search(count int, f func() interface{}) []interface{} {
	if p == nil {
		return searchAlone(f, count)
	}

	results := make([]interface{}, count)

	slots := int64(count)
	done := int64(count)
	// Buffered so workers finishing together can all report without a
	// receiver; a dropped send implies pending signals that will make this
	// call re-check the counter.
	wake := make(chan struct{}, count)
	cmd := command{
		slots:   &slots,
		done:    &done,
		wake:    wake,
		f:       f,
		results: results,
	}
	for i := 0; i < p.workerCount; i++ {
		p.commands <- cmd
	}
	for atomic.LoadInt64(&done) > 0 {
		<-wake
	}

	return results
}

// LockedReader wraps an io.Reader to be safe for concurrent reads.
//
// Which worker ends up with which bytes is raced, but no two workers ever
// read the same bytes, and the reader's state stays consistent.
type LockedReader struct {
	reader io.Reader
	m      sync.Mutex
}

// NewLockedReader creates a LockedReader by wrapping an underlying value.
func NewLockedReader(r io.Reader) *LockedReader {
	// Intentionally not initializing m, since the zero value is ok.
	return &LockedReader{reader: r}
}

// Read implements io.Reader for LockedReader.
func (r *LockedReader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return r.reader.Read(p)
}
