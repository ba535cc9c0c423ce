package chunk

import (
	"errors"
	"sync"

	"qrxfer/pkg/protocol"
)

// ErrSessionClosed is returned by SetPending, Commit and Finalize once
// Finalize has run.
var ErrSessionClosed = errors.New("chunk: reassembler session is closed")

// ErrReassemblyOverflow is returned when committing a chunk would
// push the committed buffer past the file's declared size.
var ErrReassemblyOverflow = errors.New("chunk: committed bytes exceed declared file size")

// ErrNoPendingChunk is returned by Commit when the pending slot is
// empty.
var ErrNoPendingChunk = errors.New("chunk: no pending chunk to commit")

// Reassembler is the Receiver's side of the data model: an ordered,
// gap-free buffer of committed chunks plus a single pending slot
// holding the most recently observed, not-yet-committed chunk.
type Reassembler struct {
	mu sync.Mutex

	meta      protocol.FileMetadata
	committed [][]byte
	total     uint64

	pendingWire string
	pendingRaw  []byte
	hasPending  bool

	closed bool
}

// NewReassembler creates a Reassembler for a session whose metadata
// has already been validated by the caller (the Receiver state
// machine validates meta_info before constructing one of these).
func NewReassembler(meta protocol.FileMetadata) *Reassembler {
	return &Reassembler{meta: meta}
}

// SetPending decodes wireForm, stashes both the raw bytes and the
// wire text in the pending slot (overwriting whatever was there), and
// returns the digest of the wire text for the caller to report back
// to the Sender.
func (r *Reassembler) SetPending(wireForm string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrSessionClosed
	}

	raw, err := DecodeWireForm(wireForm)
	if err != nil {
		return "", err
	}

	r.pendingWire = wireForm
	r.pendingRaw = raw
	r.hasPending = true
	return DigestOf(wireForm), nil
}

// DropPending discards the pending slot without committing it. Used
// when the Sender rejects the digest the Receiver just reported.
func (r *Reassembler) DropPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingWire = ""
	r.pendingRaw = nil
	r.hasPending = false
}

// HasPending reports whether the pending slot currently holds a chunk.
func (r *Reassembler) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPending
}

// Commit appends the pending chunk to the committed buffer and clears
// the pending slot. It is the caller's job to have already confirmed
// the digest matched before calling this (the state machines enforce
// that ordering, not this type).
func (r *Reassembler) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSessionClosed
	}
	if !r.hasPending {
		return ErrNoPendingChunk
	}

	if r.total+uint64(len(r.pendingRaw)) > r.meta.FileSize {
		return ErrReassemblyOverflow
	}

	r.committed = append(r.committed, r.pendingRaw)
	r.total += uint64(len(r.pendingRaw))
	r.pendingWire = ""
	r.pendingRaw = nil
	r.hasPending = false
	return nil
}

// CommittedCount returns the number of chunks committed so far.
func (r *Reassembler) CommittedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

// CommittedBytes returns the number of bytes committed so far.
func (r *Reassembler) CommittedBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Finalize concatenates all committed chunks in order and closes the
// session. SetPending, Commit and Finalize fail with ErrSessionClosed
// after that; DropPending, HasPending, CommittedCount and
// CommittedBytes return no error and keep working.
func (r *Reassembler) Finalize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrSessionClosed
	}

	out := make([]byte, 0, r.total)
	for _, c := range r.committed {
		out = append(out, c...)
	}
	r.closed = true
	return out, nil
}
