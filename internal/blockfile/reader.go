// Package blockfile reads the blk*.dat files a Bitcoin node stores blocks in.
// Each entry is the 4-byte network magic, a 4-byte little-endian length and
// the serialized block.
package blockfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
)

const (
	entryHeaderSize = 8
	readBufferSize  = 1 << 20
)

// ErrBadMagic reports an entry that does not start with the expected network
// magic.
var ErrBadMagic = errors.New("bad network magic")

// Entry is one block stored in a blk file.
type Entry struct {
	// Offset is the position of the block bytes, past the entry header.
	Offset int64
	Size   uint32
	// Source yields the block bytes and nothing past them. It is valid until
	// the next call to Next.
	Source decoder.Source
}

// Reader walks the entries of a blk file in order.
type Reader struct {
	r      *bufio.Reader
	net    wire.BitcoinNet
	offset int64
	cur    *io.LimitedReader
}

// NewReader reads entries framed with the magic of net.
func NewReader(r io.Reader, net wire.BitcoinNet) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, readBufferSize), net: net}
}

// Next returns the next entry. It returns io.EOF at the end of the file,
// including when the rest of a preallocated file is zero padding. Unread bytes
// of the previous entry are skipped.
func (r *Reader) Next(ctx context.Context) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.skipRest(); err != nil {
		return nil, err
	}

	var head [entryHeaderSize]byte
	n, err := io.ReadFull(r.r, head[:4])
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, fmt.Errorf("read magic at offset %d (%d bytes): %w", r.offset, n, err)
	}

	magic := wire.BitcoinNet(binary.LittleEndian.Uint32(head[:4]))
	if magic == 0 {
		return nil, io.EOF
	}
	if magic != r.net {
		return nil, fmt.Errorf("entry at offset %d has magic %s, want %s: %w", r.offset, magic, r.net, ErrBadMagic)
	}

	if _, err := io.ReadFull(r.r, head[4:]); err != nil {
		return nil, fmt.Errorf("read block length at offset %d: %w", r.offset, err)
	}
	size := binary.LittleEndian.Uint32(head[4:])

	r.offset += entryHeaderSize
	entry := &Entry{Offset: r.offset, Size: size}
	r.offset += int64(size)

	r.cur = &io.LimitedReader{R: r.r, N: int64(size)}
	entry.Source = decoder.NewReaderSource(r.cur)
	return entry, nil
}

func (r *Reader) skipRest() error {
	if r.cur == nil || r.cur.N == 0 {
		return nil
	}
	left := r.cur.N
	if _, err := io.Copy(io.Discard, r.cur); err != nil {
		return fmt.Errorf("skip %d unread block bytes: %w", left, err)
	}
	if r.cur.N > 0 {
		return fmt.Errorf("skip %d unread block bytes: %w", left, io.ErrUnexpectedEOF)
	}
	return nil
}

// File is a Reader over an opened blk file.
type File struct {
	*Reader
	f *os.File
}

// Open opens the blk file at path.
func Open(path string, net wire.BitcoinNet) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block file: %w", err)
	}
	return &File{Reader: NewReader(f, net), f: f}, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.f.Name()
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
