package generator

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/normalize"
	"github.com/genbridge/genbridge/internal/sse"
)

// streamMeta carries per-request accounting context.
type streamMeta struct {
	requestID string
	model     string
	start     time.Time
}

// Stream is a lazy, finite, non-restartable sequence of canonical events.
// It is single-consumer: one goroutine drives Next/Event. Iterate with
//
//	for s.Next() { use(s.Event()) }
//	if err := s.Err(); err != nil { ... }
//
// Every completed stream ends with exactly one event carrying a finish
// reason. Caller cancellation surfaces through Err and produces no synthetic
// terminal event, keeping aborts distinguishable from protocol finishes.
type Stream struct {
	ctx  context.Context
	gen  *Generator
	body io.ReadCloser
	dec  *sse.Decoder
	norm *normalize.StreamNormalizer
	meta streamMeta

	pending []canonical.Response
	current canonical.Response
	err     error
	done    bool

	closeOnce sync.Once
	closeErr  error
}

func newStream(ctx context.Context, gen *Generator, body io.ReadCloser, norm *normalize.StreamNormalizer, meta streamMeta) *Stream {
	return &Stream{
		ctx:  ctx,
		gen:  gen,
		body: body,
		dec:  sse.NewDecoder(body),
		norm: norm,
		meta: meta,
	}
}

// Next advances to the next canonical event. It returns false once the
// stream has delivered its terminal event or an error occurred.
func (s *Stream) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	if s.deliverPending() {
		return true
	}

	for s.dec.Next() {
		s.gen.metrics.RecordFrame()
		s.pending = s.norm.Feed(s.dec.Data())
		if s.deliverPending() {
			return true
		}
	}

	// The terminal event already went out: the stream completed, whatever
	// happens to the context afterwards.
	if s.norm.Finished() {
		s.finish()
		return false
	}

	// Cancellation is a caller-initiated abort, not a protocol finish: no
	// synthetic terminal event, the context error is the outcome.
	if err := s.ctx.Err(); err != nil {
		s.err = err
		s.release()
		return false
	}

	if err := s.dec.Err(); err != nil {
		// The connection broke mid-stream. Degrade to a terminal event so
		// the caller still sees a finish reason; the read error is logged.
		s.gen.log.Warn().Err(err).Str("request_id", s.meta.requestID).
			Msg("stream read failed, synthesizing terminal event")
	} else if !s.dec.Done() {
		// EOF before the completion sentinel: the provider hung up early.
		s.gen.log.Debug().Str("request_id", s.meta.requestID).
			Msg("stream ended before the completion sentinel")
	}

	s.pending = s.norm.Close()
	if s.deliverPending() {
		return true
	}
	s.finish()
	return false
}

// deliverPending pops the next queued event into current.
func (s *Stream) deliverPending() bool {
	if len(s.pending) == 0 {
		return false
	}
	s.current = s.pending[0]
	s.pending = s.pending[1:]
	if s.current.Terminal() {
		// Terminal event observed: account now, before the caller decides
		// whether to keep draining.
		s.gen.record(s.meta.requestID, s.meta.model, true, s.current, time.Since(s.meta.start))
	}
	return true
}

// finish marks the stream exhausted and releases the transport resource.
func (s *Stream) finish() {
	s.done = true
	s.release()
}

// Event returns the current canonical event. Valid after a true Next.
func (s *Stream) Event() canonical.Response {
	return s.current
}

// Err returns the stream error, if any. A completed stream returns nil;
// caller cancellation returns the context error.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying connection. Idempotent and safe to call
// concurrently with nothing; the stream itself stays single-consumer.
func (s *Stream) Close() error {
	s.release()
	return s.closeErr
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
}
