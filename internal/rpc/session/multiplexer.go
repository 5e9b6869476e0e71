package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// DefaultInboxCapacity is the bounded-channel size spec.md §4.2 names as the
// default per-session inbound capacity.
const DefaultInboxCapacity = 10

// Handler answers one fully-reassembled logical request and returns the
// fully-reassembled logical response (State == ReplyComplete), or an error.
// On error the multiplexer sends a single state=Unspecified fragment
// carrying the session's accumulated concerns, per spec.md §4.2's "Error"
// transition.
type Handler func(ctx context.Context, sess *Session, req *wire.Query) (*wire.Query, error)

type entry struct {
	session *Session
	synth   *chunk.Synthesizer
}

// Multiplexer implements the session lifecycle state machine (spec.md
// §4.2) on top of one Stream shared by many concurrent logical exchanges.
type Multiplexer struct {
	stream   Stream
	handler  Handler
	opts     chunk.Options
	inboxCap int
	logger   *slog.Logger

	out *outbound

	mu       sync.Mutex
	sessions map[int32]*entry

	drop chan int32
	wg   sync.WaitGroup
}

// New builds a Multiplexer bound to stream. Dial/accept the stream before
// calling this; Run drives it until the stream closes or ctx is canceled.
func New(stream Stream, handler Handler, opts chunk.Options) *Multiplexer {
	return &Multiplexer{
		stream:   stream,
		handler:  handler,
		opts:     opts,
		inboxCap: DefaultInboxCapacity,
		logger:   slog.Default(),
		out:      &outbound{s: stream},
		sessions: make(map[int32]*entry),
		drop:     make(chan int32, 64),
	}
}

// Run reads fragments off the stream until it closes (io.EOF), the context
// is canceled, or a transport-level error occurs. Cancellation is checked
// only after a received fragment has been routed, so a Run blocked in Recv
// returns only once the stream delivers a fragment, ends or fails. It blocks
// until every in-flight session handler has finished.
func (m *Multiplexer) Run(ctx context.Context) error {
	defer m.wg.Wait()

	for {
		frag, err := m.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		m.reapDropped()

		if err := m.route(ctx, frag); err != nil {
			m.logger.Warn("protocol error routing fragment", "id", frag.ID, "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// reapDropped garbage-collects sessions whose handler has finished, per
// spec.md §4.2's "opportunistically, by draining the drop-notify channel"
// rule. A session whose drop notification arrives before it is reaped is
// silently idempotent: deleting an absent map key is a no-op.
func (m *Multiplexer) reapDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		select {
		case id := <-m.drop:
			delete(m.sessions, id)
		default:
			return
		}
	}
}

func (m *Multiplexer) route(ctx context.Context, frag *wire.Query) error {
	m.mu.Lock()
	e, tracked := m.sessions[frag.ID]
	if !tracked {
		if !frag.State.IsSubmit() {
			m.mu.Unlock()
			kind := wire.ReceivedReplyWhenExpectingRequest
			if frag.State == wire.StateUnspecified {
				kind = wire.UnspecifiedQueryState
			}
			perr := wire.NewProtocolError(kind, "fragment for unknown session %d in state %s", frag.ID, frag.State)
			_ = m.out.send(&wire.Query{ID: frag.ID, Endpoint: frag.Endpoint, State: wire.StateUnspecified})
			return perr
		}

		sess := newSession(frag.ID, m.out, m.opts, m.inboxCap)
		e = &entry{session: sess, synth: chunk.NewSynthesizer(m.opts)}
		m.sessions[frag.ID] = e
		m.wg.Add(1)
		go m.runSession(ctx, e)
	}
	m.mu.Unlock()

	select {
	case e.session.inbound <- frag:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runSession drains one session's inbound channel through its Synthesizer
// until a complete request is assembled, invokes the handler, and chunks
// the reply (or a protocol-error fragment) back out.
func (m *Multiplexer) runSession(ctx context.Context, e *entry) {
	defer func() {
		select {
		case m.drop <- e.session.ID:
		default:
			m.mu.Lock()
			delete(m.sessions, e.session.ID)
			m.mu.Unlock()
		}
		m.wg.Done()
	}()

	var req *wire.Query
	for req == nil {
		select {
		case frag, ok := <-e.session.inbound:
			if !ok {
				return
			}
			assembled, err := e.synth.Add(frag)
			if err != nil {
				m.sendError(frag.ID, frag.Endpoint, e.session, err)
				return
			}
			req = assembled
		case <-ctx.Done():
			return
		}
	}

	resp, err := m.handler(ctx, e.session, req)
	if err != nil {
		m.sendError(req.ID, req.Endpoint, e.session, err)
		return
	}

	resp.ID = req.ID
	resp.Direction = wire.DirectionResponse
	resp.Endpoint = req.Endpoint
	resp.Concerns = append(resp.Concerns, e.session.Concerns()...)
	if resp.State == wire.StateUnspecified {
		resp.State = wire.StateReplyComplete
	}
	if err := e.session.Send(resp); err != nil {
		m.logger.Warn("failed to send reply", "id", resp.ID, "error", err)
	}
}

// sendError emits the single state=Unspecified fragment spec.md §4.2's
// "Error" transition describes, attaching whatever concerns had
// accumulated before the failure.
func (m *Multiplexer) sendError(id int32, ep wire.Endpoint, sess *Session, err error) {
	m.logger.Warn("session error", "id", id, "error", err)
	_ = m.out.send(&wire.Query{
		ID:       id,
		Endpoint: ep,
		State:    wire.StateUnspecified,
		Concerns: sess.Concerns(),
	})
}
