// Package receiver implements the Receiver half of the stop-and-wait
// transfer protocol: Idle -> Awaiting-meta -> Collecting -> Finalized,
// driven by envelopes observed from the channel adapter.
package receiver

import (
	"context"
	"sync"

	"qrxfer/internal/mailbox"
	"qrxfer/internal/progressui"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/chunk"
	"qrxfer/pkg/logger"
	"qrxfer/pkg/monitor"
	"qrxfer/pkg/protocol"
)

// State is one of the five states in the Receiver's transition table.
type State int

const (
	StateIdle State = iota
	StateAwaitingMeta
	StateCollecting
	StateFinalized
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMeta:
		return "awaiting-meta"
	case StateCollecting:
		return "collecting"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the Receiver.
type Status struct {
	State          State
	CommittedCount int
	TotalChunks    uint64
}

// Receiver drives one file transfer against an Adapter, delivering
// the reconstructed file to delivery on completion.
type Receiver struct {
	mu sync.Mutex

	adapter  channel.Adapter
	delivery Delivery

	state       State
	meta        protocol.FileMetadata
	reassembler *chunk.Reassembler

	nonce             int64
	lastObservedNonce int64

	mailbox *mailbox.Mailbox[protocol.Envelope]
	tracker *progressui.Tracker
	metrics *monitor.Metrics

	done    chan struct{}
	stopOne sync.Once
	err     error
}

// New creates a Receiver that will deliver the reconstructed file
// through delivery once a transfer completes.
func New(adapter channel.Adapter, delivery Delivery) *Receiver {
	return &Receiver{
		adapter:           adapter,
		delivery:          delivery,
		state:             StateAwaitingMeta,
		lastObservedNonce: -1,
		mailbox:           mailbox.New[protocol.Envelope](),
		metrics:           monitor.New(),
		done:              make(chan struct{}),
	}
}

// Tracker exposes the progress tracker, non-nil only once meta_info
// has been received.
func (r *Receiver) Tracker() *progressui.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracker
}

// Status returns a snapshot of the current state.
func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: r.state, TotalChunks: r.meta.ChunkCount}
	if r.reassembler != nil {
		st.CommittedCount = r.reassembler.CommittedCount()
	}
	return st
}

// Done returns a channel that closes once the Receiver reaches
// Finalized, Aborted, or Stop is called.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Err returns the fatal error that ended the session, if any.
func (r *Receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Run drains observations from the adapter and drives the state
// machine until the transfer finishes, aborts, ctx is canceled, or
// Stop is called.
func (r *Receiver) Run(ctx context.Context) error {
	go r.pump(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return r.Err()
		case <-r.mailbox.Signal():
			for {
				env, ok := r.mailbox.Take()
				if !ok {
					break
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.handle(ctx, env)
			}
		}
	}
}

// Stop cancels the session immediately: no partial file is delivered,
// and the adapter is released.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if r.state == StateFinalized || r.state == StateAborted {
		r.mu.Unlock()
		return
	}
	r.state = StateAborted
	r.mu.Unlock()
	r.teardown()
}

func (r *Receiver) pump(ctx context.Context) {
	for {
		select {
		case env, ok := <-r.adapter.Observations():
			if !ok {
				return
			}
			r.mailbox.Put(env)
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *Receiver) handle(ctx context.Context, env protocol.Envelope) {
	if env.KindID == protocol.KindUnknown {
		return
	}

	r.mu.Lock()
	if env.Nonce <= r.lastObservedNonce {
		r.mu.Unlock()
		return
	}
	r.lastObservedNonce = env.Nonce
	state := r.state
	r.mu.Unlock()

	switch state {
	case StateAwaitingMeta:
		if env.KindID == protocol.KindMetaInfo {
			r.onMetaInfo(ctx, env.Body)
		}
	case StateCollecting:
		switch env.KindID {
		case protocol.KindOkNext:
			r.onOkNext(ctx, env.Body)
		case protocol.KindInvalidSHA256:
			r.onInvalidDigest(ctx, env.Body)
		case protocol.KindCompleted:
			r.onCompleted(ctx)
		}
	default:
		// Finalized, Aborted, Idle: no further transitions.
	}
}

func (r *Receiver) onMetaInfo(ctx context.Context, body string) {
	m, err := protocol.DecodeMetadataBody(body)
	if err != nil {
		logger.Sugar.Warnf("[Receiver] rejecting malformed meta_info: %v", err)
		return
	}

	r.mu.Lock()
	r.meta = m
	r.reassembler = chunk.NewReassembler(m)
	r.tracker = progressui.NewTracker(m.FileName, m.FileSize, m.ChunkCount)
	r.state = StateCollecting
	r.mu.Unlock()

	r.metrics.Start()
	logger.Sugar.Infof("[Receiver] accepted meta_info: file=%s size=%d chunks=%d", m.FileName, m.FileSize, m.ChunkCount)
	r.display(ctx, protocol.KindMetaInfoReceived, "")
}

func (r *Receiver) onOkNext(ctx context.Context, wireForm string) {
	r.mu.Lock()
	reassembler := r.reassembler
	r.mu.Unlock()

	if reassembler.HasPending() {
		before := reassembler.CommittedBytes()
		if err := reassembler.Commit(); err != nil {
			r.fatal(err)
			return
		}
		r.bumpTracker(before, reassembler.CommittedBytes())
	}

	digest, err := reassembler.SetPending(wireForm)
	if err != nil {
		logger.Sugar.Warnf("[Receiver] dropping ok_next with malformed wire form: %v", err)
		return
	}
	r.display(ctx, protocol.KindEvalSHA256, digest)
}

func (r *Receiver) onInvalidDigest(ctx context.Context, wireForm string) {
	r.mu.Lock()
	reassembler := r.reassembler
	r.mu.Unlock()

	if !reassembler.HasPending() {
		// Protocol violation: invalid_sha256 with nothing pending.
		return
	}
	reassembler.DropPending()

	digest, err := reassembler.SetPending(wireForm)
	if err != nil {
		logger.Sugar.Warnf("[Receiver] dropping invalid_sha256 with malformed wire form: %v", err)
		return
	}
	r.display(ctx, protocol.KindEvalSHA256, digest)
}

func (r *Receiver) onCompleted(ctx context.Context) {
	r.mu.Lock()
	reassembler := r.reassembler
	meta := r.meta
	r.mu.Unlock()

	if reassembler.HasPending() {
		before := reassembler.CommittedBytes()
		if err := reassembler.Commit(); err != nil {
			r.fatal(err)
			return
		}
		r.bumpTracker(before, reassembler.CommittedBytes())
	}

	data, err := reassembler.Finalize()
	if err != nil {
		r.fatal(err)
		return
	}

	if err := r.delivery.Deliver(meta.FileName, meta.FileType, data); err != nil {
		r.fatal(err)
		return
	}

	r.mu.Lock()
	r.state = StateFinalized
	tracker := r.tracker
	r.mu.Unlock()
	if tracker != nil {
		tracker.MarkDone()
	}
	r.metrics.Record(int64(len(data)))
	logger.Sugar.Infof("[Receiver] finalized transfer: file=%s bytes=%d", meta.FileName, len(data))

	_ = ctx
	r.teardown()
}

func (r *Receiver) bumpTracker(before, after uint64) {
	r.mu.Lock()
	tracker := r.tracker
	r.mu.Unlock()
	if tracker != nil && after > before {
		tracker.Advance(after - before)
	}
}

func (r *Receiver) fatal(err error) {
	logger.Sugar.Errorf("[Receiver] fatal: %v", err)
	r.mu.Lock()
	r.state = StateAborted
	r.err = err
	r.mu.Unlock()
	r.teardown()
}

func (r *Receiver) teardown() {
	r.stopOne.Do(func() {
		close(r.done)
	})
	_ = r.adapter.Close()
}

func (r *Receiver) display(ctx context.Context, kind protocol.Kind, body string) {
	r.mu.Lock()
	r.nonce++
	n := r.nonce
	r.mu.Unlock()

	env := protocol.Envelope{KindID: kind, Body: body, Nonce: n}
	if err := r.adapter.Display(ctx, env); err != nil {
		logger.Sugar.Errorf("[Receiver] display failed: kind=%s err=%v", kind, err)
	}
}
