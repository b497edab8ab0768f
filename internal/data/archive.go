package data

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ArchiveWriter writes records as zstd-compressed JSON lines. The downloader
// keeps one next to each Parquet file as an audit copy of the vendor rows.
type ArchiveWriter struct {
	enc   *zstd.Encoder
	json  *json.Encoder
	count int
}

func NewArchiveWriter(w io.Writer) (*ArchiveWriter, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &ArchiveWriter{enc: enc, json: json.NewEncoder(enc)}, nil
}

// Write appends one record as a single line.
func (a *ArchiveWriter) Write(v any) error {
	if err := a.json.Encode(v); err != nil {
		return fmt.Errorf("encoding archive line %d: %w", a.count+1, err)
	}
	a.count++
	return nil
}

// Count is the number of records written.
func (a *ArchiveWriter) Count() int {
	return a.count
}

// Close flushes the zstd frame. It does not close the underlying writer.
func (a *ArchiveWriter) Close() error {
	return a.enc.Close()
}

// ReadArchive calls fn for every line of a zstd JSONL archive.
func ReadArchive(r io.Reader, fn func(line json.RawMessage) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}
