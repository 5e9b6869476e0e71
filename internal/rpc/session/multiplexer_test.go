package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// pipeStream is an in-memory Stream: everything sent on one end is received
// on the other, letting tests drive a Multiplexer without a real gRPC
// connection.
type pipeStream struct {
	in  chan *wire.Query
	out chan *wire.Query
}

func newPipe() (*pipeStream, *pipeStream) {
	a := make(chan *wire.Query, 32)
	b := make(chan *wire.Query, 32)
	return &pipeStream{in: a, out: b}, &pipeStream{in: b, out: a}
}

func (p *pipeStream) Send(q *wire.Query) error {
	p.out <- q
	return nil
}

func (p *pipeStream) Recv() (*wire.Query, error) {
	q, ok := <-p.in
	if !ok {
		return nil, io.EOF
	}
	return q, nil
}

func echoHandler(_ context.Context, _ *Session, req *wire.Query) (*wire.Query, error) {
	out := make([]string, len(req.Key))
	for i, k := range req.Key {
		out[i] = k
	}
	return &wire.Query{Output: out, State: wire.StateReplyComplete}, nil
}

func TestMultiplexerEchoesSingleSession(t *testing.T) {
	hostSide, pluginSide := newPipe()

	opts := chunk.DefaultOptions()
	mux := New(pluginSide, echoHandler, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mux.Run(ctx)
	}()

	req := &wire.Query{
		ID:       1,
		Endpoint: wire.Endpoint{Publisher: "mitre", Plugin: "git", Query: "commits"},
		State:    wire.StateSubmitComplete,
		Key:      []string{`"abc"`},
	}
	frags, err := chunk.Chunk(req, opts)
	require.NoError(t, err)
	for _, f := range frags {
		require.NoError(t, hostSide.Send(f))
	}

	synth := chunk.NewSynthesizer(opts)
	var got *wire.Query
	for got == nil {
		select {
		case f := <-hostSide.in:
			got, err = synth.Add(f)
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for reply")
		}
	}
	assert.Equal(t, req.Key, got.Output)
	assert.Equal(t, wire.StateReplyComplete, got.State)

	close(hostSide.out)
	cancel()
	wg.Wait()
}

func TestMultiplexerUnknownReplyIsProtocolError(t *testing.T) {
	hostSide, pluginSide := newPipe()
	mux := New(pluginSide, echoHandler, chunk.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = mux.Run(ctx)
		close(done)
	}()

	require.NoError(t, hostSide.Send(&wire.Query{ID: 99, State: wire.StateReplyComplete}))

	select {
	case f := <-hostSide.in:
		assert.Equal(t, wire.StateUnspecified, f.State)
		assert.Equal(t, int32(99), f.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for protocol-error fragment")
	}

	close(hostSide.out)
	cancel()
	<-done
}

func TestMultiplexerConcurrentSessionsDoNotCrossTalk(t *testing.T) {
	hostSide, pluginSide := newPipe()
	mux := New(pluginSide, echoHandler, chunk.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mux.Run(ctx) }()

	for id := int32(1); id <= 5; id++ {
		require.NoError(t, hostSide.Send(&wire.Query{
			ID:    id,
			State: wire.StateSubmitComplete,
			Key:   []string{`"k"`},
		}))
	}

	seen := map[int32]bool{}
	for len(seen) < 5 {
		select {
		case f := <-hostSide.in:
			require.Equal(t, wire.StateReplyComplete, f.State)
			seen[f.ID] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, saw %d/5 replies", len(seen))
		}
	}
}
