package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

type countingBuiltin struct {
	calls int32
	delay time.Duration
	fn    func(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error)
}

func (b *countingBuiltin) Route(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.fn != nil {
		return b.fn(ctx, ep, keys)
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return Result{Outputs: out}, nil
}

func TestDispatcherCachesByCanonicalKey(t *testing.T) {
	b := &countingBuiltin{}
	d := New(b, nil)
	ep := wire.Endpoint{Publisher: BuiltinPublisher, Plugin: "git", Query: "commits"}

	res1, err := d.Query(context.Background(), ep, []string{`{"a":1,"b":2}`})
	require.NoError(t, err)
	res2, err := d.Query(context.Background(), ep, []string{`{"b":2,"a":1}`})
	require.NoError(t, err)

	assert.Equal(t, res1, res2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.calls))
}

func TestDispatcherDeduplicatesConcurrentCallers(t *testing.T) {
	b := &countingBuiltin{delay: 50 * time.Millisecond}
	d := New(b, nil)
	ep := wire.Endpoint{Publisher: BuiltinPublisher, Plugin: "git", Query: "commits"}

	results := make(chan Result, 5)
	for i := 0; i < 5; i++ {
		go func() {
			res, err := d.Query(context.Background(), ep, []string{`"k"`})
			require.NoError(t, err)
			results <- res
		}()
	}
	for i := 0; i < 5; i++ {
		<-results
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.calls))
}

func TestDispatcherDetectsCycle(t *testing.T) {
	ep := wire.Endpoint{Publisher: BuiltinPublisher, Plugin: "a", Query: ""}

	var d *Dispatcher
	b := &countingBuiltin{}
	b.fn = func(ctx context.Context, _ wire.Endpoint, keys []string) (Result, error) {
		_, err := d.Query(ctx, ep, keys)
		return Result{}, err
	}
	d = New(b, nil)

	_, err := d.Query(context.Background(), ep, []string{`"x"`})
	require.Error(t, err)
	var cycleErr *QueryCycleError
	require.ErrorAs(t, err, &cycleErr)
}

// spec.md §8 Scenario 4: once a cycle unwinds, the cycling endpoint's cache
// entry must be removed, not left poisoned with the QueryCycleError, so a
// later, non-cycling caller gets a fresh attempt.
func TestDispatcherRemovesCacheEntryAfterCycle(t *testing.T) {
	ep := wire.Endpoint{Publisher: BuiltinPublisher, Plugin: "a", Query: ""}

	var d *Dispatcher
	cycled := false
	b := &countingBuiltin{}
	b.fn = func(ctx context.Context, _ wire.Endpoint, keys []string) (Result, error) {
		if !cycled {
			cycled = true
			_, err := d.Query(ctx, ep, keys)
			return Result{}, err
		}
		return Result{Outputs: keys}, nil
	}
	d = New(b, nil)

	_, err := d.Query(context.Background(), ep, []string{`"x"`})
	require.Error(t, err)
	var cycleErr *QueryCycleError
	require.ErrorAs(t, err, &cycleErr)

	canon, err := wire.CanonicalizeKeys([]string{`"x"`})
	require.NoError(t, err)
	ck := cacheKey(ep, canon)
	d.mu.Lock()
	_, stillCached := d.cache[ck]
	d.mu.Unlock()
	assert.False(t, stillCached, "cache entry for the cycling endpoint must be removed, not poisoned")

	res, err := d.Query(context.Background(), ep, []string{`"x"`})
	require.NoError(t, err)
	assert.Equal(t, []string{`"x"`}, res.Outputs)
}

func TestDispatcherRejectsOutputLengthMismatch(t *testing.T) {
	b := &countingBuiltin{fn: func(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
		return Result{Outputs: []string{"only-one"}}, nil
	}}
	d := New(b, nil)
	ep := wire.Endpoint{Publisher: BuiltinPublisher, Plugin: "git"}

	_, err := d.Query(context.Background(), ep, []string{`"a"`, `"b"`})
	require.Error(t, err)
}
