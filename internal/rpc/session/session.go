// Package session implements the per-connection session multiplexer
// (spec.md §4.2): it fans the single bidirectional stream to one plugin
// subprocess out into many concurrent logical query exchanges, each driven
// through its own chunk.Synthesizer, and fans replies and sub-queries back
// in over the same shared stream.
package session

import (
	"sync"

	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// Stream is the subset of rpc.PluginService_ExecuteClient/Server that the
// multiplexer needs. Both the host-side client stream and the plugin-side
// server stream satisfy it; the Multiplexer answers incoming requests and
// rejects replies to ids it is not tracking, so it serves the plugin-facing
// end of the connection.
type Stream interface {
	Send(*wire.Query) error
	Recv() (*wire.Query, error)
}

// outbound serializes writes to a Stream: grpc streams, like the teacher's
// MCP sessions, are not safe for concurrent use from multiple goroutines,
// and every session sharing this connection writes to the same Stream.
type outbound struct {
	mu sync.Mutex
	s  Stream
}

func (o *outbound) send(q *wire.Query) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.Send(q)
}

func (o *outbound) sendChunked(q *wire.Query, opts chunk.Options) error {
	frags, err := chunk.Chunk(q, opts)
	if err != nil {
		return err
	}
	for _, f := range frags {
		if err := o.send(f); err != nil {
			return err
		}
	}
	return nil
}

// Session is the per-exchange object handed to the handler callback invoked
// for each complete request (spec.md §3's "Session" data-model entry). It
// lets the handler issue chunked sub-queries/replies on the shared stream
// and accumulate concerns for the exchange.
type Session struct {
	ID int32

	inbound chan *wire.Query
	out     *outbound
	opts    chunk.Options

	concernsMu sync.Mutex
	concerns   []string
}

func newSession(id int32, out *outbound, opts chunk.Options, inboxCap int) *Session {
	return &Session{
		ID:      id,
		inbound: make(chan *wire.Query, inboxCap),
		out:     out,
		opts:    opts,
	}
}

// AddConcern records a human-readable note attached to this exchange.
func (s *Session) AddConcern(text string) {
	s.concernsMu.Lock()
	s.concerns = append(s.concerns, text)
	s.concernsMu.Unlock()
}

// Concerns returns a snapshot of the concerns recorded so far.
func (s *Session) Concerns() []string {
	s.concernsMu.Lock()
	defer s.concernsMu.Unlock()
	return append([]string(nil), s.concerns...)
}

// Send chunks q (which must carry a terminal state, SubmitComplete or
// ReplyComplete) and writes every resulting fragment to the shared stream.
// The multiplexer uses it to send the final reply for this session's own
// exchange.
func (s *Session) Send(q *wire.Query) error {
	return s.out.sendChunked(q, s.opts)
}
