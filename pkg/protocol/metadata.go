package protocol

import (
	"encoding/json"
	"errors"
)

// ErrInvalidMetadata is returned when a FileMetadata fails Validate:
// a non-positive chunk size, an inconsistent chunk count, or an empty
// file name.
var ErrInvalidMetadata = errors.New("protocol: invalid file metadata")

const DefaultFileType = "application/octet-stream"

// FileMetadata is the meta_info body, transmitted once by the Sender
// at session start. FileChunks is the json field name on the wire;
// ChunkCount is its Go name.
type FileMetadata struct {
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	FileSize   uint64 `json:"fileSize"`
	ChunkSize  uint64 `json:"chunkSize"`
	ChunkCount uint64 `json:"fileChunks"`
}

// ceilDiv rounds fileSize/chunkSize up to the next whole chunk, so a
// file that doesn't divide evenly still gets an exact chunk count
// instead of losing its last partial chunk.
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// NewFileMetadata builds metadata for a file of fileSize bytes chunked
// at chunkSize bytes, deriving ChunkCount by ceiling division.
func NewFileMetadata(fileName, fileType string, fileSize, chunkSize uint64) (FileMetadata, error) {
	if fileType == "" {
		fileType = DefaultFileType
	}
	m := FileMetadata{
		FileName:  fileName,
		FileType:  fileType,
		FileSize:  fileSize,
		ChunkSize: chunkSize,
	}
	if fileSize == 0 {
		m.ChunkCount = 0
	} else {
		m.ChunkCount = ceilDiv(fileSize, chunkSize)
	}
	return m, m.Validate()
}

// Validate enforces the metadata invariants both sides rely on:
// non-empty file name, strictly positive chunk size, and a chunk count
// consistent with file size / chunk size.
func (m FileMetadata) Validate() error {
	if m.FileName == "" {
		return ErrInvalidMetadata
	}
	if m.ChunkSize == 0 {
		return ErrInvalidMetadata
	}
	want := ceilDiv(m.FileSize, m.ChunkSize)
	if m.FileSize == 0 {
		want = 0
	}
	if m.ChunkCount != want {
		return ErrInvalidMetadata
	}
	return nil
}

// EncodeBody marshals m to the JSON body carried by a meta_info
// envelope.
func EncodeBody(m FileMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMetadataBody parses the body of a meta_info envelope. A parse
// failure or a validation failure are both reported the same way to
// the caller, which is expected to stay put and wait for a usable
// meta_info rather than crash on a malformed one.
func DecodeMetadataBody(body string) (FileMetadata, error) {
	var m FileMetadata
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return FileMetadata{}, ErrInvalidMetadata
	}
	if err := m.Validate(); err != nil {
		return FileMetadata{}, err
	}
	return m, nil
}
