// Package channel defines the thin interface the core protocol uses
// to reach the external display/capture collaborators, plus adapters
// that implement it without real camera/QR hardware.
package channel

import (
	"context"

	"qrxfer/pkg/protocol"
)

// Adapter is the core's only dependency on the visual channel. Display
// renders env on the local surface; it must be idempotent, since the
// same envelope may be (re-)displayed many times while the peer's
// response is pending. Observations returns a channel the core reads
// every successfully decoded envelope from, including repeat sightings
// of an image that hasn't changed — deduplication by nonce is the
// state machines' job, not the adapter's.
type Adapter interface {
	Display(ctx context.Context, env protocol.Envelope) error
	Observations() <-chan protocol.Envelope
	Close() error
}
