package channel

import (
	"context"
	"sync"
	"time"

	"qrxfer/pkg/protocol"
)

// Loopback is an in-process Adapter pairing a Sender and a Receiver
// through Go channels instead of a camera and a screen: a plain
// single-reader/single-writer pair, since the visual channel only ever
// has one display and one camera on each side.
//
// Each endpoint periodically re-samples whatever its peer currently
// has displayed, the way a camera keeps capturing frames of an
// unchanged QR code — this is what makes nonce-based deduplication in
// the state machines observable in tests, rather than a no-op because
// every Display only ever produces one observation.
type Loopback struct {
	mu        sync.Mutex
	displayed *protocol.Envelope
	peer      *Loopback

	obsCh chan protocol.Envelope
	done  chan struct{}
	once  sync.Once
}

// NewLoopbackPair returns two Adapters, each observing what the other
// displays, with a background sampler re-delivering the peer's
// current image every sampleInterval (simulating repeated camera
// capture of a static QR code).
func NewLoopbackPair(sampleInterval time.Duration) (a, b *Loopback) {
	a = &Loopback{obsCh: make(chan protocol.Envelope, 8), done: make(chan struct{})}
	b = &Loopback{obsCh: make(chan protocol.Envelope, 8), done: make(chan struct{})}
	a.peer = b
	b.peer = a

	go a.sampleLoop(sampleInterval)
	go b.sampleLoop(sampleInterval)
	return a, b
}

func (l *Loopback) sampleLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.peer.mu.Lock()
			d := l.peer.displayed
			l.peer.mu.Unlock()
			if d != nil {
				select {
				case l.obsCh <- *d:
				default:
				}
			}
		}
	}
}

// Display renders env and immediately offers one observation to the
// peer, in addition to whatever the background sampler later repeats.
// The offer does not block: it is dropped if the peer's observation
// buffer is full.
func (l *Loopback) Display(ctx context.Context, env protocol.Envelope) error {
	l.mu.Lock()
	l.displayed = &env
	l.mu.Unlock()

	select {
	case l.peer.obsCh <- env:
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

// Observations returns the channel of envelopes this endpoint's
// simulated camera has decoded from the peer's display.
func (l *Loopback) Observations() <-chan protocol.Envelope {
	return l.obsCh
}

// Close releases the sampler goroutine. Safe to call more than once.
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}
