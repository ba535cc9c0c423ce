package chunk

import (
	"bytes"
	"testing"
)

func TestProduceSpecExampleChunks(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	c, err := NewChunker(bytes.NewReader(data), "f.bin", "", uint64(len(data)), 4)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	w1, _, err := c.Produce(1)
	if err != nil {
		t.Fatalf("Produce(1): %v", err)
	}
	if w1 != "AAECAw==" {
		t.Fatalf("wire form 1 = %q, want AAECAw==", w1)
	}

	w2, _, err := c.Produce(2)
	if err != nil {
		t.Fatalf("Produce(2): %v", err)
	}
	if w2 != "BAUGBw==" {
		t.Fatalf("wire form 2 = %q, want BAUGBw==", w2)
	}
}

func TestProduceIsDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 100)
	c, err := NewChunker(bytes.NewReader(data), "f.bin", "", uint64(len(data)), 10)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	w1, d1, err := c.Produce(3)
	if err != nil {
		t.Fatalf("Produce(3) first: %v", err)
	}
	w2, d2, err := c.Produce(3)
	if err != nil {
		t.Fatalf("Produce(3) second: %v", err)
	}
	if w1 != w2 || d1 != d2 {
		t.Fatal("Produce(N) is not deterministic across repeated calls")
	}
}

func TestProduceShortLastChunk(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9} // 9 bytes, chunk 4 -> last chunk len 1
	c, err := NewChunker(bytes.NewReader(data), "f.bin", "", uint64(len(data)), 4)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	meta := c.Metadata()
	if meta.ChunkCount != 3 {
		t.Fatalf("ChunkCount = %d, want 3", meta.ChunkCount)
	}

	w, _, err := c.Produce(3)
	if err != nil {
		t.Fatalf("Produce(3): %v", err)
	}
	raw, err := DecodeWireForm(w)
	if err != nil {
		t.Fatalf("DecodeWireForm: %v", err)
	}
	if len(raw) != 1 || raw[0] != 9 {
		t.Fatalf("last chunk = %v, want [9]", raw)
	}
}

func TestProduceRejectsOutOfRange(t *testing.T) {
	c, err := NewChunker(bytes.NewReader([]byte{1, 2, 3, 4}), "f.bin", "", 4, 4)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if _, _, err := c.Produce(0); err != ErrChunkIndexRange {
		t.Fatalf("Produce(0) err = %v, want ErrChunkIndexRange", err)
	}
	if _, _, err := c.Produce(2); err != ErrChunkIndexRange {
		t.Fatalf("Produce(2) err = %v, want ErrChunkIndexRange", err)
	}
}

func TestReconfigureBeforeStart(t *testing.T) {
	c, err := NewChunker(bytes.NewReader(make([]byte, 100)), "f.bin", "", 100, 256)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	meta, err := c.Reconfigure(64)
	if err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if meta.ChunkSize != 64 || meta.ChunkCount != 2 {
		t.Fatalf("meta = %+v, want ChunkSize=64 ChunkCount=2", meta)
	}
}

func TestReconfigureAfterStartFails(t *testing.T) {
	c, err := NewChunker(bytes.NewReader(make([]byte, 100)), "f.bin", "", 100, 10)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if _, _, err := c.Produce(1); err != nil {
		t.Fatalf("Produce(1): %v", err)
	}
	if _, err := c.Reconfigure(5); err != ErrTransferStarted {
		t.Fatalf("Reconfigure after start err = %v, want ErrTransferStarted", err)
	}
}

func TestEmptyFileHasZeroChunks(t *testing.T) {
	c, err := NewChunker(bytes.NewReader(nil), "empty.bin", "", 0, 4)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if c.Metadata().ChunkCount != 0 {
		t.Fatalf("ChunkCount = %d, want 0", c.Metadata().ChunkCount)
	}
}
