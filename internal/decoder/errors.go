package decoder

import (
	"errors"

	"github.com/zeebo/errs"
)

// Error is the class of every error returned by the exported decode
// entrypoints.
var Error = errs.Class("decoder")

var (
	// ErrShortRead reports a source that ended before the requested bytes
	// were delivered.
	ErrShortRead = errors.New("short read")
	// ErrAmbiguousWitnessFlag reports a zero marker followed by a flag byte
	// other than 0x01.
	ErrAmbiguousWitnessFlag = errors.New("ambiguous witness flag")
	// ErrConsumed reports a second iteration over a record sequence.
	ErrConsumed = errors.New("record sequence already consumed")
	// ErrInvalidHex reports malformed hexadecimal input.
	ErrInvalidHex = errors.New("invalid hex")
	// ErrTrailingData reports bytes left after a standalone header or
	// transaction.
	ErrTrailingData = errors.New("trailing data")
)

func classify(err error) error {
	if err == nil || Error.Has(err) {
		return err
	}
	return Error.Wrap(err)
}
