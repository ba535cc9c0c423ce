// Package sender implements the Sender half of the stop-and-wait
// transfer protocol: Idle -> Advertising -> Transmitting -> Finalizing
// -> Done, driven by envelopes observed from the channel adapter.
package sender

import (
	"context"
	"errors"
	"sync"
	"time"

	"qrxfer/internal/mailbox"
	"qrxfer/internal/progressui"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/chunk"
	"qrxfer/pkg/logger"
	"qrxfer/pkg/monitor"
	"qrxfer/pkg/protocol"
)

// ErrAlreadyStarted is returned by Start when the Sender is not Idle.
var ErrAlreadyStarted = errors.New("sender: session already started")

// State is one of the five states in the Sender's transition table.
type State int

const (
	StateIdle State = iota
	StateAdvertising
	StateTransmitting
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateTransmitting:
		return "transmitting"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DefaultFinalizeGrace is the hold window in Finalizing before
// teardown, giving the Receiver multiple chances to observe the
// completed envelope before the channel goes away.
const DefaultFinalizeGrace = 2 * time.Second

// Status is a point-in-time snapshot of the Sender, safe to read from
// another goroutine (e.g. a CLI status command).
type Status struct {
	State       State
	ChunkIndex  uint64
	TotalChunks uint64
}

// Sender drives one file transfer against an Adapter.
type Sender struct {
	mu sync.Mutex

	adapter channel.Adapter
	chunker *chunk.Chunker
	meta    protocol.FileMetadata

	state      State
	curChunk   uint64
	lastWire   string
	lastDigest string

	nonce             int64
	lastObservedNonce int64

	finalizeGrace time.Duration
	mailbox       *mailbox.Mailbox[protocol.Envelope]
	tracker       *progressui.Tracker
	metrics       *monitor.Metrics

	done chan struct{}
	stop sync.Once
}

// New creates a Sender for chunker's file, to be driven over adapter.
func New(adapter channel.Adapter, chunker *chunk.Chunker) *Sender {
	meta := chunker.Metadata()
	return &Sender{
		adapter:           adapter,
		chunker:           chunker,
		meta:              meta,
		state:             StateIdle,
		lastObservedNonce: -1,
		finalizeGrace:     DefaultFinalizeGrace,
		mailbox:           mailbox.New[protocol.Envelope](),
		tracker:           progressui.NewTracker(meta.FileName, meta.FileSize, meta.ChunkCount),
		metrics:           monitor.New(),
		done:              make(chan struct{}),
	}
}

// Tracker exposes the progress tracker so a caller can attach a
// progressui.Renderer.
func (s *Sender) Tracker() *progressui.Tracker {
	return s.tracker
}

// Status returns a snapshot of the current state.
func (s *Sender) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, ChunkIndex: s.curChunk, TotalChunks: s.meta.ChunkCount}
}

// Done returns a channel that closes once the Sender reaches Done
// (normal completion or Stop).
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Start moves Idle -> Advertising by displaying meta_info. It must be
// called exactly once, before Run.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateAdvertising
	s.mu.Unlock()

	body, err := protocol.EncodeBody(s.meta)
	if err != nil {
		return err
	}
	s.metrics.Start()
	logger.Sugar.Infof("[Sender] starting transfer: file=%s size=%d chunks=%d", s.meta.FileName, s.meta.FileSize, s.meta.ChunkCount)
	return s.display(ctx, protocol.KindMetaInfo, body)
}

// Run drains observations from the adapter and drives the state
// machine until the transfer reaches Done, ctx is canceled, or Stop
// is called. It must be called after Start.
func (s *Sender) Run(ctx context.Context) error {
	go s.pump(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.mailbox.Signal():
			for {
				env, ok := s.mailbox.Take()
				if !ok {
					break
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.handle(ctx, env)
			}
		}
	}
}

// Stop cancels the session: no further envelopes are processed, state
// moves to Done rather than back to Idle, and the adapter is released.
func (s *Sender) Stop() {
	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return
	}
	s.state = StateDone
	s.mu.Unlock()
	s.teardown()
}

func (s *Sender) pump(ctx context.Context) {
	for {
		select {
		case env, ok := <-s.adapter.Observations():
			if !ok {
				return
			}
			s.mailbox.Put(env)
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Sender) handle(ctx context.Context, env protocol.Envelope) {
	if env.KindID == protocol.KindUnknown {
		return
	}

	s.mu.Lock()
	if env.Nonce <= s.lastObservedNonce {
		s.mu.Unlock()
		return
	}
	s.lastObservedNonce = env.Nonce
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateAdvertising:
		if env.KindID == protocol.KindMetaInfoReceived {
			s.beginTransmitting(ctx)
		}
	case StateTransmitting:
		if env.KindID == protocol.KindEvalSHA256 {
			s.onEvalDigest(ctx, env.Body)
		}
	default:
		// Finalizing, Done, Idle: no transitions accept observations.
	}
}

func (s *Sender) beginTransmitting(ctx context.Context) {
	s.mu.Lock()
	total := s.meta.ChunkCount
	s.mu.Unlock()

	if total == 0 {
		// Zero-byte file: no chunk to send, go straight to completed.
		s.finishTransfer(ctx)
		return
	}

	wire, digest, err := s.chunker.Produce(1)
	if err != nil {
		logger.Sugar.Errorf("[Sender] failed to produce chunk 1: %v", err)
		return
	}

	s.mu.Lock()
	s.state = StateTransmitting
	s.curChunk = 1
	s.lastWire = wire
	s.lastDigest = digest
	s.mu.Unlock()

	s.display(ctx, protocol.KindOkNext, wire)
}

func (s *Sender) onEvalDigest(ctx context.Context, digest string) {
	s.mu.Lock()
	n := s.curChunk
	expected := s.lastDigest
	wire := s.lastWire
	total := s.meta.ChunkCount
	s.mu.Unlock()

	if digest != expected {
		// Retransmit the same chunk's wire form, not a fresh read:
		// retries must be byte-identical or the Receiver's digest
		// check can never converge.
		s.display(ctx, protocol.KindInvalidSHA256, wire)
		return
	}

	s.tracker.Advance(uint64(len(decodedBytes(wire))))

	if n < total {
		nextWire, nextDigest, err := s.chunker.Produce(n + 1)
		if err != nil {
			logger.Sugar.Errorf("[Sender] failed to produce chunk %d: %v", n+1, err)
			return
		}
		s.mu.Lock()
		s.curChunk = n + 1
		s.lastWire = nextWire
		s.lastDigest = nextDigest
		s.mu.Unlock()
		s.display(ctx, protocol.KindOkNext, nextWire)
		return
	}

	// Last chunk acknowledged: completed takes precedence over
	// producing and displaying another ok_next.
	logger.Sugar.Infof("[Sender] all %d chunks acknowledged, finalizing", total)
	s.finishTransfer(ctx)
}

// finishTransfer transitions to Finalizing, marks progress done, records
// the transfer, announces completed, and starts the grace window before
// Done closes. Reached either from the zero-chunk boundary case in
// beginTransmitting or from the last chunk being acknowledged in
// onEvalDigest.
func (s *Sender) finishTransfer(ctx context.Context) {
	s.mu.Lock()
	s.state = StateFinalizing
	s.mu.Unlock()
	s.tracker.MarkDone()
	s.metrics.Record(int64(s.meta.FileSize))
	s.display(ctx, protocol.KindCompleted, "")

	go s.finalizeAfterGrace(ctx)
}

func (s *Sender) finalizeAfterGrace(ctx context.Context) {
	select {
	case <-time.After(s.finalizeGrace):
	case <-ctx.Done():
	case <-s.done:
		return
	}
	s.mu.Lock()
	s.state = StateDone
	s.mu.Unlock()
	s.teardown()
}

func (s *Sender) teardown() {
	s.stop.Do(func() {
		close(s.done)
	})
	_ = s.adapter.Close()
}

func (s *Sender) display(ctx context.Context, kind protocol.Kind, body string) error {
	s.mu.Lock()
	s.nonce++
	n := s.nonce
	s.mu.Unlock()

	env := protocol.Envelope{KindID: kind, Body: body, Nonce: n}
	if err := s.adapter.Display(ctx, env); err != nil {
		logger.Sugar.Errorf("[Sender] display failed: kind=%s err=%v", kind, err)
		return err
	}
	return nil
}

func decodedBytes(wireForm string) []byte {
	raw, err := chunk.DecodeWireForm(wireForm)
	if err != nil {
		return nil
	}
	return raw
}
