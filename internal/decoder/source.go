package decoder

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Source yields exactly n bytes per Read or fails. A source that ends early
// must report ErrShortRead. Returned slices are read-only for the caller.
//
// A source that also implements io.Closer is closed by the Parser when its
// record sequence terminates.
type Source interface {
	Read(ctx context.Context, n int) ([]byte, error)
}

// readGrowth bounds the up-front allocation for a single read so that a
// hostile length prefix cannot allocate more than the stream delivers.
const readGrowth = 64 << 10

type readerSource struct {
	r io.Reader
}

// NewReaderSource adapts an io.Reader. The reader is never closed.
func NewReaderSource(r io.Reader) Source {
	return &readerSource{r: r}
}

func (s *readerSource) Read(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: negative length", n)
	}

	var buf bytes.Buffer
	buf.Grow(min(n, readGrowth))

	got, err := io.CopyN(&buf, s.r, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %d bytes, got %d: %w", n, got, ErrShortRead)
		}
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	return buf.Bytes(), nil
}

type readCloserSource struct {
	readerSource
	c io.Closer
}

// NewReadCloserSource adapts an io.ReadCloser; the Parser closes it once its
// sequence terminates.
func NewReadCloserSource(rc io.ReadCloser) Source {
	return &readCloserSource{
		readerSource: readerSource{r: rc},
		c:            rc,
	}
}

func (s *readCloserSource) Close() error {
	return s.c.Close()
}

type bytesSource struct {
	data []byte
	off  int
}

// NewBytesSource serves reads from an in-memory buffer without copying.
func NewBytesSource(data []byte) Source {
	return &bytesSource{data: data}
}

// NewHexSource decodes s (optionally 0x-prefixed, surrounding whitespace
// ignored) and serves reads from the result.
func NewHexSource(s string) (Source, error) {
	data, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return NewBytesSource(data), nil
}

func (s *bytesSource) Read(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: negative length", n)
	}
	if remaining := len(s.data) - s.off; n > remaining {
		s.off = len(s.data)
		return nil, fmt.Errorf("read %d bytes, got %d: %w", n, remaining, ErrShortRead)
	}
	chunk := s.data[s.off : s.off+n : s.off+n]
	s.off += n
	return chunk, nil
}

// Remaining reports the number of unread bytes.
func (s *bytesSource) Remaining() int {
	return len(s.data) - s.off
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return data, nil
}

// readExact enforces the Source contract on sources that return fewer bytes
// than requested without an error.
func readExact(ctx context.Context, src Source, n int) ([]byte, error) {
	b, err := src.Read(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("read %d bytes, got %d: %w", n, len(b), ErrShortRead)
	}
	return b, nil
}
