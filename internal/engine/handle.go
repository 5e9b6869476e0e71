// Package engine provides the per-session handle given to analysis code —
// built-in or, via the PluginRouter inbound handler (internal/dispatch) that
// cmd/hipcheck installs, a remote plugin's incoming sub-query — so it can
// issue further queries and record concerns (spec.md
// §2's "Plugin engine (per-session handle)").
package engine

import (
	"context"

	"github.com/mitre/hipcheck-fabric/internal/dispatch"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// ConcernRecorder is satisfied by *session.Session; kept as a narrow
// interface here so engine doesn't import internal/rpc/session and analysis
// code under internal/builtin doesn't need to know sessions exist.
type ConcernRecorder interface {
	AddConcern(text string)
}

// Handle is what an analysis (built-in or, conceptually, plugin code) holds
// to talk back to the fabric: issue a sub-query to any other endpoint, and
// attach a concern to the exchange currently being answered.
type Handle struct {
	dispatcher *dispatch.Dispatcher
	recorder   ConcernRecorder
	self       wire.Endpoint
}

// New builds a Handle bound to d. recorder may be nil for a handle used
// outside any session (e.g. the host's top-level root-query loop), in
// which case AddConcern is a no-op.
func New(d *dispatch.Dispatcher, recorder ConcernRecorder, self wire.Endpoint) *Handle {
	return &Handle{dispatcher: d, recorder: recorder, self: self}
}

// Query issues a sub-query to ep with the given batch of JSON-encoded keys
// and returns one JSON-encoded output per key, in order.
func (h *Handle) Query(ctx context.Context, ep wire.Endpoint, keys []string) ([]string, error) {
	res, err := h.dispatcher.Query(ctx, ep, keys)
	if err != nil {
		return nil, err
	}
	return res.Outputs, nil
}

// AddConcern records a human-readable note against the exchange this handle
// belongs to.
func (h *Handle) AddConcern(text string) {
	if h.recorder != nil {
		h.recorder.AddConcern(text)
	}
}

// Self returns the endpoint this handle is answering on behalf of.
func (h *Handle) Self() wire.Endpoint { return h.self }
