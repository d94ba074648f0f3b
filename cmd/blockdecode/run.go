package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/blockfile"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/ingest"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type blockSummary struct {
	Hash          string          `json:"hash"`
	Height        *uint64         `json:"height,omitempty"`
	Time          string          `json:"time"`
	TxCount       uint32          `json:"txCount"`
	Size          uint32          `json:"size"`
	Weight        uint32          `json:"weight"`
	Difficulty    float64         `json:"difficulty"`
	CoinbaseValue decimal.Decimal `json:"coinbaseValue"`
	Reward        string          `json:"reward"`
	Offset        *int64          `json:"offset,omitempty"`
}

func validate(cfg config) error {
	switch {
	case cfg.Header && cfg.Tx:
		return errors.New("--header and --tx are exclusive")
	case cfg.Blk && (cfg.Header || cfg.Tx):
		return errors.New("--blk holds whole blocks; drop --header and --tx")
	case cfg.Blk && (cfg.Hex != "" || cfg.Args.Input == "" || cfg.Args.Input == "-"):
		return errors.New("--blk needs a file argument")
	case cfg.Summary && (cfg.Header || cfg.Tx):
		return errors.New("--summary applies to blocks only")
	case cfg.Hex != "" && cfg.Args.Input != "":
		return errors.New("--hex and a file argument are exclusive")
	}
	return nil
}

func run(ctx context.Context, cfg config, stdin io.Reader, out io.Writer, logger *zap.Logger) error {
	if err := validate(cfg); err != nil {
		return err
	}

	opts := []decoder.Option{decoder.WithLogger(logger.Named("decoder"))}
	if cfg.LegacyFlag {
		opts = append(opts, decoder.WithLegacyFlagFallback())
	}
	enc := jsonAPI.NewEncoder(out)

	if cfg.Blk {
		return decodeBlockFile(ctx, cfg, enc, logger, opts)
	}

	if cfg.Header || cfg.Tx {
		text, err := readHex(cfg, stdin)
		if err != nil {
			return err
		}
		if cfg.Header {
			header, err := decoder.DecodeHeaderHex(ctx, text)
			if err != nil {
				return err
			}
			return enc.Encode(header)
		}
		tx, err := decoder.DecodeTransactionHex(ctx, text, opts...)
		if err != nil {
			return err
		}
		return enc.Encode(tx)
	}

	src, err := openSource(cfg, stdin)
	if err != nil {
		return err
	}
	if cfg.Summary {
		block, err := decoder.DecodeBlock(ctx, src, opts...)
		if err != nil {
			return err
		}
		return writeSummary(cfg, enc, block, nil)
	}
	return writeRecords(ctx, enc, decoder.NewParser(src, opts...))
}

func writeRecords(ctx context.Context, enc *jsoniter.Encoder, parser *decoder.Parser) error {
	for rec, err := range parser.Records(ctx) {
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func decodeBlockFile(ctx context.Context, cfg config, enc *jsoniter.Encoder, logger *zap.Logger, opts []decoder.Option) error {
	params, err := cfg.Network.Params()
	if err != nil {
		return err
	}
	f, err := blockfile.Open(cfg.Args.Input, params.Net)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	blocks := 0
	for {
		entry, err := f.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("block file decoded", zap.String("file", f.Name()), zap.Int("blocks", blocks))
			return nil
		}
		if err != nil {
			return err
		}

		if cfg.Summary {
			block, err := decoder.DecodeBlock(ctx, entry.Source, opts...)
			if err != nil {
				return fmt.Errorf("block at offset %d: %w", entry.Offset, err)
			}
			offset := entry.Offset
			if err := writeSummary(cfg, enc, block, &offset); err != nil {
				return err
			}
		} else if err := writeRecords(ctx, enc, decoder.NewParser(entry.Source, opts...)); err != nil {
			return fmt.Errorf("block at offset %d: %w", entry.Offset, err)
		}
		blocks++
	}
}

func writeSummary(cfg config, enc *jsoniter.Encoder, block *decoder.Block, offset *int64) error {
	converter, err := ingest.NewConverter(cfg.Network)
	if err != nil {
		return err
	}
	var known *uint64
	height, err := converter.Height(block)
	if err == nil {
		known = &height
	}
	rows, err := converter.Convert(block, height)
	if err != nil {
		return err
	}

	b := rows.Block
	summary := blockSummary{
		Hash:       b.Hash,
		Height:     known,
		Time:       b.Timestamp.Format(time.RFC3339),
		TxCount:    b.TXCount,
		Size:       b.Size,
		Weight:     b.Weight,
		Difficulty: b.Difficulty,
		Reward:     btcutil.Amount(int64(b.CoinbaseValue)).String(),
		Offset:     offset,
	}
	if block.Coinbase != nil {
		summary.CoinbaseValue = block.Coinbase.ValueBTC()
	}
	return enc.Encode(summary)
}

func openSource(cfg config, stdin io.Reader) (decoder.Source, error) {
	switch {
	case cfg.Hex != "":
		return decoder.NewHexSource(cfg.Hex)
	case cfg.Args.Input == "" || cfg.Args.Input == "-":
		return decoder.NewReaderSource(stdin), nil
	default:
		f, err := os.Open(cfg.Args.Input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		return decoder.NewReadCloserSource(f), nil
	}
}

// readHex returns the input as hex text for the single-object decoders.
// Files and stdin hold raw bytes.
func readHex(cfg config, stdin io.Reader) (string, error) {
	if cfg.Hex != "" {
		return cfg.Hex, nil
	}

	var r io.Reader = stdin
	if cfg.Args.Input != "" && cfg.Args.Input != "-" {
		f, err := os.Open(cfg.Args.Input)
		if err != nil {
			return "", fmt.Errorf("open input: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return fmt.Sprintf("%x", data), nil
}
