package socket

import (
	"context"
	"net"
	"sync"

	"qrxfer/pkg/logger"
	"qrxfer/pkg/protocol"
)

// Adapter is a channel.Adapter backed by a single TCP connection.
// Display writes one frame per call; a background reader loop decodes
// incoming frames and pushes them onto the observation channel.
type Adapter struct {
	conn net.Conn

	writeMu sync.Mutex
	obsCh   chan protocol.Envelope
	closed  chan struct{}
	once    sync.Once
}

// Listen opens addr and blocks until one peer connects, then returns
// an Adapter wrapping that connection. Used by the Sender side of a
// dev-loop transfer (qrxfer send).
func Listen(ctx context.Context, addr string) (*Adapter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return newAdapter(r.conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dial connects to addr and returns an Adapter wrapping the
// connection. Used by the Receiver side of a dev-loop transfer
// (qrxfer receive).
func Dial(ctx context.Context, addr string) (*Adapter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newAdapter(conn), nil
}

func newAdapter(conn net.Conn) *Adapter {
	a := &Adapter{
		conn:   conn,
		obsCh:  make(chan protocol.Envelope, 8),
		closed: make(chan struct{}),
	}
	go a.readLoop()
	return a
}

func (a *Adapter) readLoop() {
	for {
		payload, err := readFrame(a.conn)
		if err != nil {
			select {
			case <-a.closed:
			default:
				logger.Sugar.Debugf("[socket] read loop ended: remote=%s err=%v", a.conn.RemoteAddr(), err)
			}
			return
		}
		env := protocol.Decode(string(payload))
		select {
		case a.obsCh <- env:
		case <-a.closed:
			return
		}
	}
}

// Display encodes env and writes it as one frame. Repeated calls with
// identical content produce identical frames, satisfying the
// idempotence requirement on Adapter.Display.
func (a *Adapter) Display(ctx context.Context, env protocol.Envelope) error {
	payload, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return writeFrame(a.conn, []byte(payload))
}

// Observations returns the channel of envelopes decoded from incoming
// frames.
func (a *Adapter) Observations() <-chan protocol.Envelope {
	return a.obsCh
}

// Close releases the connection and stops the read loop.
func (a *Adapter) Close() error {
	a.once.Do(func() { close(a.closed) })
	return a.conn.Close()
}
