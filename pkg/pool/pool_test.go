package pool

import (
	"crypto/rand"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSearch(t *testing.T) {
	pl := NewPool(4)
	defer pl.TearDown()

	var attempts int64
	results := pl.Search(3, func() interface{} {
		// Succeed every fourth attempt.
		if atomic.AddInt64(&attempts, 1)%4 != 0 {
			return nil
		}
		return struct{}{}
	})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotNil(t, r)
	}
}

func TestSearchNilPool(t *testing.T) {
	var pl *Pool
	n := 0
	results := pl.Search(2, func() interface{} {
		n++
		if n%2 == 0 {
			return n
		}
		return nil
	})
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0])
	assert.Equal(t, 4, results[1])
}

func TestSearchConcurrent(t *testing.T) {
	// Many short searches racing on a pool with fewer workers than
	// searchers. Every call must return even when successes land
	// back to back: a wakeup consumed by the wrong searcher would leave
	// one of them blocked here forever.
	pl := NewPool(2)
	defer pl.TearDown()

	for i := 0; i < 500; i++ {
		var g errgroup.Group
		for j := 0; j < 4; j++ {
			g.Go(func() error {
				var n int64
				results := pl.Search(1, func() interface{} {
					if atomic.AddInt64(&n, 1)%3 == 0 {
						return struct{}{}
					}
					return nil
				})
				if results[0] == nil {
					return errors.New("search returned an empty slot")
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
	}
}

func TestLockedReaderConcurrent(t *testing.T) {
	r := NewLockedReader(rand.Reader)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			buf := make([]byte, 64)
			for j := 0; j < 100; j++ {
				if _, err := r.Read(buf); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
