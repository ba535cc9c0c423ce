// Package chunk implements the Chunker and Reassembler halves of the
// protocol's data model: splitting a source file into fixed-size
// chunks on the Sender side, and collecting them back into a file on
// the Receiver side.
package chunk

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"sync"

	"qrxfer/pkg/protocol"
)

// ErrTransferStarted is returned by Reconfigure once Produce has been
// called at least once: chunk size is frozen after the first envelope
// is sent, since both sides have already committed to a chunk count.
var ErrTransferStarted = errors.New("chunk: chunk size is frozen after transfer start")

// ErrChunkIndexRange is returned by Produce for N outside [1, ChunkCount].
var ErrChunkIndexRange = errors.New("chunk: index out of range")

// Chunker reads fixed-size byte ranges out of a source file and
// returns each range's wire form (base64 text) and digest (hex
// SHA-256 of that text, not of the raw bytes — the digest travels with
// the text that actually crosses the wire). It is stateless modulo the
// source stream: calling Produce(N) twice returns byte-identical
// results.
type Chunker struct {
	mu      sync.Mutex
	source  io.ReaderAt
	fileSz  uint64
	started bool
	meta    protocol.FileMetadata
}

// NewChunker builds a Chunker over source, which must expose exactly
// fileSize readable bytes, chunked at chunkSize bytes.
func NewChunker(source io.ReaderAt, fileName, fileType string, fileSize, chunkSize uint64) (*Chunker, error) {
	meta, err := protocol.NewFileMetadata(fileName, fileType, fileSize, chunkSize)
	if err != nil {
		return nil, err
	}
	return &Chunker{source: source, fileSz: fileSize, meta: meta}, nil
}

// Metadata returns the current FileMetadata, reflecting any
// Reconfigure calls made before the first Produce.
func (c *Chunker) Metadata() protocol.FileMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Reconfigure rewrites chunk size and recomputes chunk count. Only
// legal before the first Produce call.
func (c *Chunker) Reconfigure(chunkSize uint64) (protocol.FileMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return protocol.FileMetadata{}, ErrTransferStarted
	}
	meta, err := protocol.NewFileMetadata(c.meta.FileName, c.meta.FileType, c.fileSz, chunkSize)
	if err != nil {
		return protocol.FileMetadata{}, err
	}
	c.meta = meta
	return c.meta, nil
}

// Produce reads the byte range for the N-th chunk (1-indexed),
// base64-encodes it, and returns that text alongside the hex SHA-256
// digest of the text itself.
func (c *Chunker) Produce(n uint64) (wireForm, digest string, err error) {
	c.mu.Lock()
	meta := c.meta
	source := c.source
	c.started = true
	c.mu.Unlock()

	if n < 1 || n > meta.ChunkCount {
		return "", "", ErrChunkIndexRange
	}

	start := (n - 1) * meta.ChunkSize
	end := start + meta.ChunkSize
	if end > meta.FileSize {
		end = meta.FileSize
	}

	raw := make([]byte, end-start)
	if len(raw) > 0 {
		if _, err := source.ReadAt(raw, int64(start)); err != nil && err != io.EOF {
			return "", "", err
		}
	}

	wireForm = base64.StdEncoding.EncodeToString(raw)
	digest = digestOf(wireForm)
	return wireForm, digest, nil
}

// digestOf returns the lowercase hex SHA-256 of the UTF-8 bytes of
// wireForm. Comparison between two digests is case-sensitive exact
// string equality.
func digestOf(wireForm string) string {
	sum := sha256.Sum256([]byte(wireForm))
	return hex.EncodeToString(sum[:])
}

// DecodeWireForm reverses the base64 encoding Produce applies,
// recovering the raw chunk bytes.
func DecodeWireForm(wireForm string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(wireForm)
}

// DigestOf exposes digestOf to the Receiver side, which must compute
// the same hash over an observed wire form to compare against the
// Sender's claim.
func DigestOf(wireForm string) string {
	return digestOf(wireForm)
}
