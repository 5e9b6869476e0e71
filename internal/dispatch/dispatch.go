// Package dispatch implements the query dispatcher and memo cache (spec.md
// §4.3): the single function every analysis — built-in or plugin — calls to
// resolve publisher/plugin/query against a batch of keys, with at-most-once
// computation and causal-chain cycle detection.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// Query is a convenience wrapper around (*Dispatcher).QueryBatch that
// canonicalizes keys itself, the call shape most callers want.
func (d *Dispatcher) Query(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
	canon, err := wire.CanonicalizeKeys(keys)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: canonicalizing keys for %s: %w", ep, err)
	}
	return d.QueryBatch(ctx, ep, keys, canon)
}

// BuiltinPublisher is the namespace routed to in-process analyses instead
// of an external plugin connection.
const BuiltinPublisher = "mitre"

// Result is what a completed dispatch produces: one output per input key,
// in order, plus any concerns the resolving endpoint recorded.
type Result struct {
	Outputs  []string
	Concerns []string
}

// Router resolves an endpoint that isn't the built-in publisher to a
// running plugin connection and issues the (possibly batched) request.
type Router interface {
	Route(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error)

func (f RouterFunc) Route(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
	return f(ctx, ep, keys)
}

// Builtin resolves a mitre/* endpoint entirely in-process.
type Builtin interface {
	Route(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error)
}

// QueryCycleError is returned when a dispatch would re-enter a cache key
// already InFlight on the current causal chain.
type QueryCycleError struct {
	Chain []string
}

func (e *QueryCycleError) Error() string {
	return fmt.Sprintf("query cycle detected: %v", e.Chain)
}

type cacheState int

const (
	stateInFlight cacheState = iota
	stateComputed
)

type cacheEntry struct {
	state cacheState
	done  chan struct{}
	res   Result
	err   error
}

// Dispatcher is the run-scoped memoizing router described in spec.md §4.3.
// One Dispatcher serves an entire run: its cache lives exactly as long as
// the run, per the data model's "entries live for the duration of one run."
type Dispatcher struct {
	builtin Builtin
	router  Router
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry

	concernsMu sync.Mutex
	concerns   map[string][]string // endpoint string -> concerns
}

// New builds a Dispatcher. builtin handles the BuiltinPublisher namespace;
// router handles every other publisher (a real plugin connection).
func New(builtin Builtin, router Router) *Dispatcher {
	return &Dispatcher{
		builtin:  builtin,
		router:   router,
		logger:   slog.Default(),
		cache:    make(map[string]*cacheEntry),
		concerns: make(map[string][]string),
	}
}

type stackKeyType struct{}

var stackKey = stackKeyType{}

func stackFrom(ctx context.Context) []string {
	if v, ok := ctx.Value(stackKey).([]string); ok {
		return v
	}
	return nil
}

func withStack(ctx context.Context, stack []string) context.Context {
	return context.WithValue(ctx, stackKey, stack)
}

// cacheKey builds the 4-tuple key spec.md §4.3 specifies, using the batch's
// full canonical key vector as the "canonical(key_json)" component (see
// DESIGN.md for why the whole request batch, rather than each individual
// key, is the memoization unit).
func cacheKey(ep wire.Endpoint, canonKeys string) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s", ep.Publisher, ep.Plugin, ep.Query, canonKeys)
}

// QueryBatch resolves ep against keys (JSON-encoded strings, batched), per
// spec.md §4.3: cache-first, at-most-one concurrent computation per key,
// and cycle detection against the causal chain carried in ctx. canonKeys
// must be wire.CanonicalizeKeys(keys); callers that already have it (e.g.
// to log it) can pass it directly instead of going through Query.
func (d *Dispatcher) QueryBatch(ctx context.Context, ep wire.Endpoint, keys []string, canonKeys string) (Result, error) {
	ck := cacheKey(ep, canonKeys)

	stack := stackFrom(ctx)
	for _, onStack := range stack {
		if onStack == ck {
			chain := append(append([]string(nil), stack...), ck)
			return Result{}, &QueryCycleError{Chain: chain}
		}
	}

	d.mu.Lock()
	if e, ok := d.cache[ck]; ok {
		d.mu.Unlock()
		<-e.done
		return e.res, e.err
	}
	e := &cacheEntry{state: stateInFlight, done: make(chan struct{})}
	d.cache[ck] = e
	d.mu.Unlock()

	childCtx := withStack(ctx, append(append([]string(nil), stack...), ck))

	var res Result
	var err error
	if ep.Publisher == BuiltinPublisher {
		if d.builtin == nil {
			err = fmt.Errorf("dispatch: no builtin registered for %s", ep)
		} else {
			res, err = d.builtin.Route(childCtx, ep, keys)
		}
	} else {
		if d.router == nil {
			err = fmt.Errorf("dispatch: no router registered, cannot reach %s", ep)
		} else {
			res, err = d.router.Route(childCtx, ep, keys)
		}
	}

	if err == nil && len(res.Outputs) != len(keys) {
		err = fmt.Errorf("dispatch: %s returned %d outputs for %d inputs", ep, len(res.Outputs), len(keys))
	}

	d.mu.Lock()
	e.res = res
	e.err = err
	var cycleErr *QueryCycleError
	if errors.As(err, &cycleErr) {
		// spec.md §8 Scenario 4: once the cycle unwinds, A's cache entry is
		// removed, not poisoned — a later, non-cycling caller of A must get
		// a fresh attempt, not this run's permanent QueryCycleError.
		delete(d.cache, ck)
	} else {
		e.state = stateComputed
	}
	close(e.done)
	d.mu.Unlock()

	if len(res.Concerns) > 0 {
		d.recordConcerns(ep, res.Concerns)
	}
	if err != nil {
		d.logger.Warn("dispatch failed", "endpoint", ep.String(), "error", err)
	}
	return res, err
}

func (d *Dispatcher) recordConcerns(ep wire.Endpoint, concerns []string) {
	d.concernsMu.Lock()
	defer d.concernsMu.Unlock()
	d.concerns[ep.String()] = append(d.concerns[ep.String()], concerns...)
}

// Concerns returns every concern recorded so far, grouped by the endpoint
// that raised them.
func (d *Dispatcher) Concerns() map[string][]string {
	d.concernsMu.Lock()
	defer d.concernsMu.Unlock()
	out := make(map[string][]string, len(d.concerns))
	for k, v := range d.concerns {
		out[k] = append([]string(nil), v...)
	}
	return out
}
