package protocol

import "testing"

func TestNewFileMetadataCeilDivision(t *testing.T) {
	cases := []struct {
		size, chunk uint64
		wantCount   uint64
	}{
		{8, 4, 2},
		{9, 4, 3},
		{0, 4, 0},
		{4, 4, 1},
		{1, 4, 1},
	}
	for _, c := range cases {
		m, err := NewFileMetadata("f.bin", "", c.size, c.chunk)
		if err != nil {
			t.Fatalf("NewFileMetadata(%d,%d): %v", c.size, c.chunk, err)
		}
		if m.ChunkCount != c.wantCount {
			t.Errorf("size=%d chunk=%d: ChunkCount=%d, want %d", c.size, c.chunk, m.ChunkCount, c.wantCount)
		}
	}
}

func TestNewFileMetadataDefaultsFileType(t *testing.T) {
	m, err := NewFileMetadata("f.bin", "", 10, 4)
	if err != nil {
		t.Fatalf("NewFileMetadata: %v", err)
	}
	if m.FileType != DefaultFileType {
		t.Fatalf("FileType = %q, want %q", m.FileType, DefaultFileType)
	}
}

func TestValidateRejectsBadMetadata(t *testing.T) {
	bad := []FileMetadata{
		{FileName: "", FileType: "x", FileSize: 10, ChunkSize: 4, ChunkCount: 3},
		{FileName: "f", FileType: "x", FileSize: 10, ChunkSize: 0, ChunkCount: 0},
		{FileName: "f", FileType: "x", FileSize: 10, ChunkSize: 4, ChunkCount: 1},
	}
	for i, m := range bad {
		if err := m.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}

func TestDecodeMetadataBodyRoundTrip(t *testing.T) {
	m, err := NewFileMetadata("photo.png", "image/png", 12, 5)
	if err != nil {
		t.Fatalf("NewFileMetadata: %v", err)
	}
	body, err := EncodeBody(m)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	got, err := DecodeMetadataBody(body)
	if err != nil {
		t.Fatalf("DecodeMetadataBody: %v", err)
	}
	if got != m {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestDecodeMetadataBodyRejectsMalformed(t *testing.T) {
	if _, err := DecodeMetadataBody("not json"); err == nil {
		t.Fatal("expected error for malformed body")
	}
	if _, err := DecodeMetadataBody(`{"fileName":"","fileSize":1,"chunkSize":1,"fileChunks":1}`); err == nil {
		t.Fatal("expected error for empty file name")
	}
}
