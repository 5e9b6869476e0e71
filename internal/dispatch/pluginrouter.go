package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/rpc"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// InboundHandler serves a sub-query a plugin subprocess issues back to the
// host over its own stream (spec.md §2's "sub-queries that re-enter the
// dispatcher recursively"). PluginRouter never constructs the concrete
// dispatch.Dispatcher/engine.Handle pair itself — cmd/hipcheck does, since
// internal/engine already imports internal/dispatch and a reverse import
// would cycle — it only calls back through this narrow interface, the same
// pattern Router/Builtin already use to keep the two packages decoupled.
type InboundHandler interface {
	Serve(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error)
}

// PluginRouter is a Router backed by real plugin subprocesses, one
// persistent bidirectional stream per publisher/plugin pair — mirroring
// the teacher's one-session-per-server connection pooling in
// pkg/mcp.Client, adapted from "one MCP session per tool server" to "one
// gRPC stream per plugin."
type PluginRouter struct {
	opts    chunk.Options
	inbound InboundHandler

	mu    sync.RWMutex
	conns map[string]*pluginConn
}

// NewPluginRouter returns a router with no connections; call Connect before
// routing to a given publisher/plugin.
func NewPluginRouter(opts chunk.Options) *PluginRouter {
	return &PluginRouter{opts: opts, conns: make(map[string]*pluginConn)}
}

// SetInboundHandler registers the callback used to serve sub-queries plugins
// issue back to the host. Must be called before Connect if any connected
// plugin is expected to call back into the fabric; connections made before
// it is set simply drop any such sub-query with a logged warning.
func (r *PluginRouter) SetInboundHandler(h InboundHandler) {
	r.mu.Lock()
	r.inbound = h
	r.mu.Unlock()
}

func connKey(publisher, plugin string) string { return publisher + "/" + plugin }

// Connect dials addr and starts reading replies for the given
// publisher/plugin pair. Safe to call once per plugin at startup.
func (r *PluginRouter) Connect(ctx context.Context, publisher, plugin, addr string) error {
	cc, err := rpc.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial %s/%s at %q: %w", publisher, plugin, addr, err)
	}
	client := rpc.NewPluginServiceClient(cc)
	stream, err := client.Execute(ctx)
	if err != nil {
		return fmt.Errorf("open stream to %s/%s: %w", publisher, plugin, err)
	}

	r.mu.RLock()
	inbound := r.inbound
	r.mu.RUnlock()

	pc := &pluginConn{
		ctx:     ctx,
		stream:  stream,
		opts:    r.opts,
		inbound: inbound,
		pending: make(map[int32]chan synthResult),
		synths:  make(map[int32]*chunk.Synthesizer),
		logger:  slog.Default().With("plugin", publisher+"/"+plugin),
	}
	go pc.readLoop()

	r.mu.Lock()
	r.conns[connKey(publisher, plugin)] = pc
	r.mu.Unlock()
	return nil
}

// Route implements dispatch.Router.
func (r *PluginRouter) Route(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
	r.mu.RLock()
	pc, ok := r.conns[connKey(ep.Publisher, ep.Plugin)]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("dispatch: no connection for plugin %s/%s", ep.Publisher, ep.Plugin)
	}
	return pc.call(ctx, ep, keys)
}

type synthResult struct {
	q   *wire.Query
	err error
}

// pluginConn multiplexes many in-flight calls over one bidirectional
// stream, the client-side mirror of internal/rpc/session.Multiplexer: each
// call gets its own id and its own reply channel, and one background
// goroutine demultiplexes incoming fragments by id.
type pluginConn struct {
	ctx     context.Context
	stream  rpc.PluginService_ExecuteClient
	opts    chunk.Options
	inbound InboundHandler
	logger  *slog.Logger

	nextID int32

	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[int32]chan synthResult
	synths  map[int32]*chunk.Synthesizer
}

// sendChunked chunks q and writes every fragment to the shared stream,
// serialized against every other writer of this connection: grpc streams
// are not safe for concurrent Send, and both call (host-initiated requests)
// and serveInbound (replies to plugin-initiated sub-queries) write here.
func (pc *pluginConn) sendChunked(q *wire.Query) error {
	frags, err := chunk.Chunk(q, pc.opts)
	if err != nil {
		return err
	}
	pc.sendMu.Lock()
	defer pc.sendMu.Unlock()
	for _, f := range frags {
		if err := pc.stream.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func (pc *pluginConn) call(ctx context.Context, ep wire.Endpoint, keys []string) (Result, error) {
	id := atomic.AddInt32(&pc.nextID, 1)

	reply := make(chan synthResult, 1)
	pc.mu.Lock()
	pc.pending[id] = reply
	pc.mu.Unlock()
	defer func() {
		pc.mu.Lock()
		delete(pc.pending, id)
		delete(pc.synths, id)
		pc.mu.Unlock()
	}()

	req := &wire.Query{
		ID:        id,
		Direction: wire.DirectionRequest,
		Endpoint:  ep,
		Key:       keys,
		State:     wire.StateSubmitComplete,
	}
	if err := pc.sendChunked(req); err != nil {
		return Result{}, fmt.Errorf("send to %s: %w", ep, err)
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return Result{}, r.err
		}
		if r.q.State == wire.StateUnspecified {
			return Result{Concerns: r.q.Concerns}, fmt.Errorf("plugin %s reported a session error: %v", ep, r.q.Concerns)
		}
		return Result{Outputs: r.q.Output, Concerns: r.q.Concerns}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// readLoop demultiplexes the shared stream by fragment id, feeding each
// call's Synthesizer until its reply completes. A fragment whose id the host
// never registered a pending call for is a plugin-initiated sub-query
// (spec.md §2/§6); once assembled it is handed to serveInbound rather than
// discarded.
func (pc *pluginConn) readLoop() {
	if pc.synths == nil {
		pc.synths = make(map[int32]*chunk.Synthesizer)
	}
	for {
		frag, err := pc.stream.Recv()
		if err != nil {
			pc.failAll(err)
			return
		}

		pc.mu.Lock()
		synth, ok := pc.synths[frag.ID]
		if !ok {
			synth = chunk.NewSynthesizer(pc.opts)
			pc.synths[frag.ID] = synth
		}
		ch, hasWaiter := pc.pending[frag.ID]
		pc.mu.Unlock()

		assembled, serr := synth.Add(frag)
		if serr != nil {
			if hasWaiter {
				ch <- synthResult{err: serr}
			} else {
				pc.logger.Warn("synthesis error for untracked call", "id", frag.ID, "error", serr)
			}
			continue
		}
		if assembled == nil {
			continue
		}
		if hasWaiter {
			ch <- synthResult{q: assembled}
			continue
		}
		go pc.serveInbound(assembled)
	}
}

// serveInbound answers a sub-query a plugin issued back to the host on this
// same connection, then chunks the reply back out over the shared stream.
func (pc *pluginConn) serveInbound(req *wire.Query) {
	pc.mu.Lock()
	delete(pc.synths, req.ID)
	pc.mu.Unlock()

	if pc.inbound == nil {
		pc.logger.Warn("no inbound handler registered, dropping plugin-initiated sub-query", "id", req.ID, "endpoint", req.Endpoint.String())
		return
	}

	res, err := pc.inbound.Serve(pc.ctx, req.Endpoint, req.Key)
	reply := &wire.Query{
		ID:        req.ID,
		Direction: wire.DirectionResponse,
		Endpoint:  req.Endpoint,
	}
	if err != nil {
		reply.State = wire.StateUnspecified
		reply.Concerns = []string{fmt.Sprintf("host dispatch failed: %v", err)}
	} else {
		reply.Output = res.Outputs
		reply.Concerns = res.Concerns
		reply.State = wire.StateReplyComplete
	}
	if sendErr := pc.sendChunked(reply); sendErr != nil {
		pc.logger.Warn("failed to send reply for inbound sub-query", "id", req.ID, "error", sendErr)
	}
}

func (pc *pluginConn) failAll(err error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for id, ch := range pc.pending {
		ch <- synthResult{err: fmt.Errorf("plugin connection closed: %w", err)}
		delete(pc.pending, id)
	}
}
