// Package decoder incrementally decodes the Bitcoin block serialization
// format, including the segregated witness extension, from an ordered byte
// stream.
//
// Every field is pulled from a Source in wire order; nothing is buffered
// beyond the transaction currently being decoded. A Parser turns one source
// into a forward-only sequence of records:
//
//	HEADER, [COINBASE], TX, TX, ...
//
// The coinbase record is a projection of the first transaction and is emitted
// immediately before it when the first input spends no previous output.
//
// Transaction ids and weights are derived while bytes are consumed. The
// Accumulator logs every chunk read for the current transaction; the segwit
// marker and flag as well as all witness stacks are flagged as excluded, so
// the id is computed over the stripped serialization and the weight follows
// BIP141:
//
//	weight = 3*len(base) + len(total)
//
// Compact sizes are decoded as exact uint64 values and output values are
// summed with math/big. Non-minimal compact size encodings are accepted as
// they are and declared lengths are trusted.
package decoder
