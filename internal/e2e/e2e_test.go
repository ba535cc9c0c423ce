// Package e2e wires a real Sender and Receiver through a Loopback
// channel pair, exercising the full protocol end to end: advertise,
// transmit, and finalize. The Loopback never corrupts a chunk, so no
// test here exercises a retry on a rejected digest.
package e2e

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qrxfer/internal/receiver"
	"qrxfer/internal/sender"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/chunk"
)

func runTransfer(t *testing.T, data []byte, chunkSize uint64) []byte {
	t.Helper()

	dir := t.TempDir()
	senderSide, receiverSide := channel.NewLoopbackPair(20 * time.Millisecond)

	c, err := chunk.NewChunker(bytes.NewReader(data), "payload.bin", "application/octet-stream", uint64(len(data)), chunkSize)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	snd := sender.New(senderSide, c)
	rcv := receiver.New(receiverSide, receiver.DiskDelivery{Dir: dir})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go rcv.Run(ctx)
	if err := snd.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go snd.Run(ctx)

	select {
	case <-rcv.Done():
	case <-ctx.Done():
		t.Fatal("transfer did not finish before the deadline")
	}
	if err := rcv.Err(); err != nil {
		t.Fatalf("receiver ended with error: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "payload.bin"))
	if err != nil {
		t.Fatalf("reading delivered file: %v", err)
	}
	return out
}

func TestEndToEndTwoChunkHappyPath(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	got := runTransfer(t, data, 4)
	if !bytes.Equal(got, data) {
		t.Fatalf("delivered = %v, want %v", got, data)
	}
}

func TestEndToEndUnevenLastChunk(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	got := runTransfer(t, data, 7)
	if !bytes.Equal(got, data) {
		t.Fatalf("delivered %d bytes, want %d", len(got), len(data))
	}
}

func TestEndToEndEmptyFile(t *testing.T) {
	got := runTransfer(t, []byte{}, 4)
	if len(got) != 0 {
		t.Fatalf("delivered %d bytes for an empty file", len(got))
	}
}

func TestEndToEndSingleByteChunks(t *testing.T) {
	data := []byte{9, 8, 7, 6, 5}
	got := runTransfer(t, data, 1)
	if !bytes.Equal(got, data) {
		t.Fatalf("delivered = %v, want %v", got, data)
	}
}

func TestEndToEndChunkSizeLargerThanFile(t *testing.T) {
	data := []byte{1, 2, 3}
	got := runTransfer(t, data, 1024)
	if !bytes.Equal(got, data) {
		t.Fatalf("delivered = %v, want %v", got, data)
	}
}

func TestEndToEndCancelMidTransferReleasesBoth(t *testing.T) {
	dir := t.TempDir()
	senderSide, receiverSide := channel.NewLoopbackPair(20 * time.Millisecond)

	data := bytes.Repeat([]byte{0xAB}, 200000)
	c, err := chunk.NewChunker(bytes.NewReader(data), "payload.bin", "application/octet-stream", uint64(len(data)), 1)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	snd := sender.New(senderSide, c)
	rcv := receiver.New(receiverSide, receiver.DiskDelivery{Dir: dir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rcv.Run(ctx)
	if err := snd.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go snd.Run(ctx)

	time.Sleep(time.Millisecond)
	snd.Stop()
	rcv.Stop()

	select {
	case <-snd.Done():
	case <-time.After(time.Second):
		t.Fatal("sender did not release after Stop")
	}
	select {
	case <-rcv.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver did not release after Stop")
	}

	if _, err := os.ReadFile(filepath.Join(dir, "payload.bin")); err == nil {
		t.Fatal("a canceled transfer must not deliver a partial file")
	}
}

func TestEndToEndReconfigureChunkSizeBeforeStart(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	c, err := chunk.NewChunker(bytes.NewReader(data), "payload.bin", "application/octet-stream", uint64(len(data)), 4)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if _, err := c.Reconfigure(2); err != nil {
		t.Fatalf("Reconfigure before start: %v", err)
	}
	if got := c.Metadata().ChunkCount; got != 4 {
		t.Fatalf("chunk count after reconfigure = %d, want 4", got)
	}

	dir := t.TempDir()
	senderSide, receiverSide := channel.NewLoopbackPair(20 * time.Millisecond)
	snd := sender.New(senderSide, c)
	rcv := receiver.New(receiverSide, receiver.DiskDelivery{Dir: dir})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go rcv.Run(ctx)
	if err := snd.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go snd.Run(ctx)

	select {
	case <-rcv.Done():
	case <-ctx.Done():
		t.Fatal("transfer did not finish before the deadline")
	}

	out, err := os.ReadFile(filepath.Join(dir, "payload.bin"))
	if err != nil {
		t.Fatalf("reading delivered file: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("delivered = %v, want %v", out, data)
	}

	// Reconfiguring after the first Produce must fail.
	if _, err := c.Reconfigure(8); err != chunk.ErrTransferStarted {
		t.Fatalf("Reconfigure after start = %v, want ErrTransferStarted", err)
	}
}

func TestEndToEndLargerFileManyChunks(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 251)
	}
	got := runTransfer(t, data, 97)
	if !bytes.Equal(got, data) {
		t.Fatalf("delivered %d bytes differ from source (%d bytes)", len(got), len(data))
	}
}
