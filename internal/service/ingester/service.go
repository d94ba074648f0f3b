// Package ingester decodes raw blocks from blk files or a node and stores
// their rows.
package ingester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/blockfile"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/ingest"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/workerpool"
	"go.uber.org/zap"
)

// Config tunes ingestion. Zero fields take the package defaults.
type Config struct {
	Workers       int
	FlushSize     int
	FlushInterval time.Duration
	// FlushRate caps storage flushes per second.
	FlushRate    int
	PollInterval time.Duration
	// HeightChunk is how many heights Run ingests between tip checks.
	HeightChunk   uint64
	DecodeOptions []decoder.Option
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = defaultWorkerCount
	}
	if c.FlushSize < 1 {
		c.FlushSize = defaultFlushSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.FlushRate < 1 {
		c.FlushRate = defaultFlushRate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.HeightChunk == 0 {
		c.HeightChunk = defaultHeightChunk
	}
	return c
}

// Service ingests blocks of one network.
type Service struct {
	logger    *zap.Logger
	coin      model.Coin
	network   model.Network
	magic     wire.BitcoinNet
	repo      Repository
	source    BlockSource
	metrics   Metrics
	converter *ingest.Converter
	cfg       Config
	sleep     func(context.Context, time.Duration) error
}

// NewService builds a Service. source may be nil when only files are
// ingested.
func NewService(
	repo Repository,
	source BlockSource,
	metrics Metrics,
	network model.Network,
	logger *zap.Logger,
	cfg Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("ingester repository is required")
	}
	if metrics == nil {
		return nil, errors.New("ingester metrics is required")
	}

	params, err := network.Params()
	if err != nil {
		return nil, err
	}
	converter, err := ingest.NewConverter(network)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger: logger.With(
			zap.String("coin", string(model.BTC)),
			zap.String("network", string(network)),
		),
		coin:      model.BTC,
		network:   network,
		magic:     params.Net,
		repo:      repo,
		source:    source,
		metrics:   metrics,
		converter: converter,
		cfg:       cfg.withDefaults(),
		sleep:     clock.SleepWithContext,
	}, nil
}

// IngestFiles stores the blocks of the given blk files. A first pass reads
// the header and coinbase of every entry and links blocks to their parents;
// heights count from genesis, or from a block committing to its height when
// the files do not reach back to genesis. The second pass stores the blocks
// of the best chain. Stale blocks and blocks whose height cannot be resolved
// are skipped.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (err error) {
	started := time.Now()
	var blocks atomic.Int64
	defer func() {
		s.metrics.ObserveProcessBatch(modeFiles, err, int(blocks.Load()), started)
	}()

	s.logger.Info("indexing block files", zap.Int("files", len(paths)))
	index := newChainIndex()
	err = workerpool.Process(ctx, s.cfg.Workers, slices.Values(paths), func(ctx context.Context, path string) error {
		return s.indexFile(ctx, index, path)
	}, func() {
		s.logger.Warn("indexing failed, cancelling remaining files")
	})
	if err != nil {
		return err
	}

	chain := index.resolve()
	logger := s.logger.With(
		zap.Int("blocks", len(chain.heights)),
		zap.Uint64("tipHeight", chain.tipHeight),
		zap.Int("stale", chain.stale),
		zap.Int("duplicates", chain.duplicates),
	)
	if chain.unconnected > 0 {
		logger.Warn("skipping blocks without a resolvable height", zap.Int("unconnected", chain.unconnected))
	}
	logger.Info("ingesting block files", zap.Int("files", len(paths)))

	return ingestItems(ctx, s, slices.Values(paths), func(ctx context.Context, w *blockWriter, path string) error {
		n, err := s.ingestFile(ctx, w, path, chain.heights)
		blocks.Add(int64(n))
		return err
	})
}

// eachEntry calls fn for every entry of the blk file at path.
func (s *Service) eachEntry(ctx context.Context, path string, fn func(*blockfile.Entry) error) error {
	f, err := blockfile.Open(path, s.magic)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("close block file", zap.String("file", path), zap.Error(closeErr))
		}
	}()

	for {
		entry, err := f.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(entry); err != nil {
			return fmt.Errorf("block at %s:%d: %w", path, entry.Offset, err)
		}
	}
}

func (s *Service) indexFile(ctx context.Context, index *chainIndex, path string) error {
	return s.eachEntry(ctx, path, func(entry *blockfile.Entry) error {
		b, err := s.indexEntry(ctx, entry)
		if err != nil {
			return err
		}
		b.loc = blockLocation{path: path, offset: entry.Offset}
		index.add(b)
		return nil
	})
}

// indexEntry decodes the header and coinbase of entry; the rest of the block
// is skipped.
func (s *Service) indexEntry(ctx context.Context, entry *blockfile.Entry) (indexedBlock, error) {
	block := &decoder.Block{}
	for rec, err := range decoder.NewParser(entry.Source, s.cfg.DecodeOptions...).Records(ctx) {
		if err != nil {
			return indexedBlock{}, err
		}
		if rec.Type() == decoder.RecordTransaction {
			break
		}
		switch r := rec.(type) {
		case *decoder.Header:
			block.Header = r
		case *decoder.Coinbase:
			block.Coinbase = r
		}
	}
	if block.Header == nil {
		return indexedBlock{}, errors.New("entry without header")
	}

	b := indexedBlock{hash: block.Header.Hash, prev: block.Header.PrevBlockHash}
	if height, err := s.converter.Height(block); err == nil {
		b.proven = &height
	}
	return b, nil
}

func (s *Service) ingestFile(ctx context.Context, w *blockWriter, path string, heights map[blockLocation]uint64) (int, error) {
	count := 0
	err := s.eachEntry(ctx, path, func(entry *blockfile.Entry) error {
		height, ok := heights[blockLocation{path: path, offset: entry.Offset}]
		if !ok {
			return nil
		}
		if err := s.ingestEntry(ctx, w, entry, height); err != nil {
			return err
		}
		count++
		return nil
	})
	if err == nil {
		s.logger.Info("block file ingested", zap.String("file", path), zap.Int("blocks", count))
	}
	return count, err
}

func (s *Service) ingestEntry(ctx context.Context, w *blockWriter, entry *blockfile.Entry, height uint64) (err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveProcessBlock(modeFiles, err, started)
	}()

	block, err := decoder.DecodeBlock(ctx, entry.Source, s.cfg.DecodeOptions...)
	if err != nil {
		return err
	}
	return s.write(ctx, w, block, height)
}

// IngestHeights fetches, decodes and stores the blocks in [from, to].
func (s *Service) IngestHeights(ctx context.Context, from, to uint64) (err error) {
	if s.source == nil {
		return errors.New("ingester block source is required")
	}
	if from > to {
		return fmt.Errorf("invalid height range %d..%d", from, to)
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveProcessBatch(modeNode, err, int(to-from+1), started)
	}()

	s.logger.Info("ingesting heights", zap.Uint64("from", from), zap.Uint64("to", to))
	return ingestItems(ctx, s, heightRange(from, to), s.ingestHeight)
}

func (s *Service) ingestHeight(ctx context.Context, w *blockWriter, height uint64) (err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveProcessBlock(modeNode, err, started)
	}()

	raw, err := s.source.FetchBlock(ctx, height)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", height, err)
	}
	block, err := decoder.DecodeBlock(ctx, decoder.NewBytesSource(raw), s.cfg.DecodeOptions...)
	if err != nil {
		return fmt.Errorf("decode block %d: %w", height, err)
	}
	return s.write(ctx, w, block, height)
}

func (s *Service) write(ctx context.Context, w *blockWriter, block *decoder.Block, height uint64) error {
	rows, err := s.converter.Convert(block, height)
	if err != nil {
		return err
	}
	return w.WriteBlock(ctx, rows)
}

// ingestItems runs process over items with a worker pool feeding one block
// writer. Blocks converted before a failure are still written.
func ingestItems[T any](ctx context.Context, s *Service, items iter.Seq[T], process func(context.Context, *blockWriter, T) error) error {
	w := newBlockWriter(s.repo, s.metrics, s.logger, s.cfg)
	w.Start(ctx)

	err := workerpool.Process(ctx, s.cfg.Workers, items, func(ctx context.Context, item T) error {
		return process(ctx, w, item)
	}, func() {
		s.logger.Warn("ingestion failed, cancelling remaining work")
	})

	if stopErr := w.Stop(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	return err
}

// Run ingests from the block after the highest stored one up to the node
// tip, then keeps polling for new blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.source == nil {
		return errors.New("ingester block source is required")
	}

	var (
		next    uint64
		resumed bool
		delay   = &clock.Backoff{Base: s.cfg.PollInterval, Max: maxBackoff}
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !resumed {
			height, ok, err := s.repo.MaxBlockHeight(ctx, s.coin, s.network)
			if err != nil {
				if waitErr := s.backoff(ctx, delay, "read stored height", err); waitErr != nil {
					return waitErr
				}
				continue
			}
			if ok {
				next = height + 1
			}
			resumed = true
			s.logger.Info("resuming ingestion", zap.Uint64("height", next))
		}

		tip, err := s.source.LatestHeight(ctx)
		if err != nil {
			if waitErr := s.backoff(ctx, delay, "read node tip", err); waitErr != nil {
				return waitErr
			}
			continue
		}
		s.metrics.ObserveTip(tip)

		if next > tip {
			s.logger.Debug("at node tip; sleeping", zap.Uint64("tip", tip), zap.Duration("sleep", s.cfg.PollInterval))
			if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		to := min(tip, next+s.cfg.HeightChunk-1)
		if err := s.IngestHeights(ctx, next, to); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if waitErr := s.backoff(ctx, delay, "ingest heights", err); waitErr != nil {
				return waitErr
			}
			continue
		}
		next = to + 1
		delay.Reset()
	}
}

func (s *Service) backoff(ctx context.Context, delay *clock.Backoff, what string, err error) error {
	d := delay.Next()
	s.logger.Warn(what+" failed, backing off", zap.Error(err), zap.Duration("sleep", d))
	return s.sleep(ctx, d)
}

func heightRange(from, to uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for h := from; ; h++ {
			if !yield(h) || h == to {
				return
			}
		}
	}
}
