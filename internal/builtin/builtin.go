// Package builtin implements the trivial "mitre"-namespaced analyses
// SPEC_FULL.md's module table calls for: in-process stand-ins for real
// plugins, just complete enough to exercise the dispatcher, policy
// expression language and scoring tree end-to-end without a subprocess.
// Domain-specific analyses (real git/typo/SPDX plugins) remain out of
// scope per spec.md §1's non-goals; these exist only to drive the fabric.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitre/hipcheck-fabric/internal/dispatch"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// AnalysisFunc computes one built-in analysis's output for a single
// JSON-encoded input key.
type AnalysisFunc func(ctx context.Context, key json.RawMessage) (json.RawMessage, error)

// Registry dispatches mitre/<plugin>#<query> endpoints to registered
// AnalysisFuncs, implementing dispatch.Builtin.
type Registry struct {
	funcs map[string]AnalysisFunc
}

// NewRegistry returns a Registry preloaded with the built-in analyses.
func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]AnalysisFunc{}}
	r.Register("activity", "", activityDaysSinceLastCommit)
	r.Register("typo", "", typoDistanceToPopularNames)
	return r
}

func key(ep wire.Endpoint) string {
	return ep.Plugin + "#" + ep.Query
}

// Register adds or replaces the analysis served at plugin/query.
func (r *Registry) Register(plugin, query string, fn AnalysisFunc) {
	r.funcs[key(wire.Endpoint{Plugin: plugin, Query: query})] = fn
}

// Route implements dispatch.Builtin: it looks up ep.Plugin/ep.Query and
// applies the analysis to every key independently, in order.
func (r *Registry) Route(ctx context.Context, ep wire.Endpoint, keys []string) (dispatch.Result, error) {
	fn, ok := r.funcs[key(ep)]
	if !ok {
		return dispatch.Result{}, fmt.Errorf("builtin: no analysis registered for %s", ep)
	}
	outputs := make([]string, len(keys))
	for i, k := range keys {
		out, err := fn(ctx, json.RawMessage(k))
		if err != nil {
			return dispatch.Result{}, fmt.Errorf("builtin: %s on input %d: %w", ep, i, err)
		}
		outputs[i] = string(out)
	}
	return dispatch.Result{Outputs: outputs}, nil
}
