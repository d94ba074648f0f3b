package decoder

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/safe"
)

const (
	compactSize16 = 0xfd
	compactSize32 = 0xfe
	compactSize64 = 0xff
)

// ReadCompactSize decodes one variable-length unsigned integer, consuming 1,
// 3, 5 or 9 bytes.
func ReadCompactSize(ctx context.Context, src Source) (uint64, error) {
	prefix, err := readExact(ctx, src, 1)
	if err != nil {
		return 0, fmt.Errorf("read compact size prefix: %w", err)
	}
	return readCompactSizeFrom(ctx, src, prefix[0])
}

// readCompactSizeFrom finishes a compact size whose first byte has already
// been consumed.
func readCompactSizeFrom(ctx context.Context, src Source, prefix byte) (uint64, error) {
	var width int
	switch prefix {
	case compactSize16:
		width = 2
	case compactSize32:
		width = 4
	case compactSize64:
		width = 8
	default:
		return uint64(prefix), nil
	}

	b, err := readExact(ctx, src, width)
	if err != nil {
		return 0, fmt.Errorf("read %d-byte compact size: %w", width, err)
	}

	switch width {
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return binary.LittleEndian.Uint64(b), nil
	}
}

// ReadPrefixedHex reads a compact-size-prefixed byte string and returns it as
// lowercase hex. A zero length yields "" without a further read.
func ReadPrefixedHex(ctx context.Context, src Source) (string, error) {
	n, err := ReadCompactSize(ctx, src)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return "", nil
	}

	size, err := safe.Int(n)
	if err != nil {
		return "", fmt.Errorf("byte string length: %w", err)
	}
	b, err := readExact(ctx, src, size)
	if err != nil {
		return "", fmt.Errorf("read %d-byte string: %w", size, err)
	}
	return hex.EncodeToString(b), nil
}
