// Package filesink appends matched envelopes to a single output file, with
// optional transparent compression, the way stages/write.go opens and wraps
// its target file -- minus that stage's per-interval file rotation, which
// spec.md §4.7 has no analogue for (the output file is append-only for the
// lifetime of the process).
package filesink

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"compress/gzip"
)

// Sink appends raw bytes to one file, optionally through a compressing
// writer. Write is not safe for concurrent use; spec.md §4.4 calls it from
// the filter worker only.
type Sink struct {
	fh *os.File
	wr io.WriteCloser
}

// Open opens path for appending (creating it if absent) and wraps it with a
// compressor chosen by compress ("gz"/"gzip", "zstd"/"zst"/"zstandard",
// "bz2"/"bzip2"/"bzip", or "", "none", "false" for no compression),
// mirroring stages/write.go's --compress switch.
func Open(path, compress string) (*Sink, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	var wr io.WriteCloser
	switch strings.ToLower(compress) {
	case "", "none", "false":
		wr = fh
	case "gz", "gzip":
		wr = gzip.NewWriter(fh)
	case "zstd", "zst", "zstandard":
		w, err := zstd.NewWriter(fh)
		if err != nil {
			fh.Close()
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		wr = w
	case "bz2", "bzip2", "bzip":
		w, err := bzip2.NewWriter(fh, nil)
		if err != nil {
			fh.Close()
			return nil, fmt.Errorf("create bzip2 writer: %w", err)
		}
		wr = w
	default:
		fh.Close()
		return nil, fmt.Errorf("output_compress %q: unsupported value", compress)
	}

	return &Sink{fh: fh, wr: wr}, nil
}

// Write appends data to the underlying writer.
func (s *Sink) Write(data []byte) error {
	_, err := s.wr.Write(data)
	return err
}

// Close flushes and closes the compressor (if any) and the file handle.
func (s *Sink) Close() error {
	var err error
	if s.wr != nil && s.wr != io.WriteCloser(s.fh) {
		err = s.wr.Close()
	}
	if cerr := s.fh.Close(); err == nil {
		err = cerr
	}
	return err
}
