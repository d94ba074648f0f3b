package decoder

import (
	"time"

	"go.uber.org/zap"
)

// Observer receives decode events, typically to feed metrics.
type Observer interface {
	ObserveRecord(r Record)
	ObserveSequence(records int, err error, started time.Time)
}

// Option configures transaction decoding and record sequences.
type Option func(*options)

type options struct {
	legacyFlagFallback bool
	bareHeader         bool
	logger             *zap.Logger
	observer           Observer
}

func newOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLegacyFlagFallback keeps a zero marker followed by a flag byte other
// than 0x01 as consumed framing of a transaction with no inputs instead of
// failing with ErrAmbiguousWitnessFlag.
func WithLegacyFlagFallback() Option {
	return func(o *options) {
		o.legacyFlagFallback = true
	}
}

// WithBareHeader makes a Parser decode an 80-byte header with no trailing
// transaction count. The sequence then holds the header only.
func WithBareHeader() Option {
	return func(o *options) {
		o.bareHeader = true
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer for emitted records and finished
// sequences.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveRecord(Record) {}

func (nopObserver) ObserveSequence(int, error, time.Time) {}
