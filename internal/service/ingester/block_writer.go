package ingester

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/batcher"
	"go.uber.org/zap"
)

// blockWriter batches converted blocks and writes their rows. Block rows go
// last so a stored block always has its transactions stored too.
type blockWriter struct {
	repo    Repository
	metrics Metrics
	logger  *zap.Logger
	batcher *batcher.Batcher[model.InsertBlock]
}

func newBlockWriter(repo Repository, metrics Metrics, logger *zap.Logger, cfg Config) *blockWriter {
	w := &blockWriter{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
	w.batcher = batcher.New[model.InsertBlock](
		logger.Named("blockBatcher"),
		w.flush,
		cfg.FlushSize,
		cfg.FlushInterval,
		cfg.FlushRate,
	)
	return w
}

func (w *blockWriter) Start(ctx context.Context) {
	w.batcher.Start(ctx)
}

// Stop flushes queued blocks and reports every failed flush.
func (w *blockWriter) Stop() error {
	w.batcher.Stop()
	return w.batcher.Err()
}

func (w *blockWriter) WriteBlock(ctx context.Context, b model.InsertBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.batcher.Add(ctx, b)
}

func (w *blockWriter) flush(ctx context.Context, batch []model.InsertBlock) (err error) {
	started := time.Now()
	defer func() {
		w.metrics.ObserveFlush(err, started)
	}()

	var (
		blocks  = make([]model.Block, 0, len(batch))
		txs     []model.Transaction
		inputs  []model.TransactionInput
		outputs []model.TransactionOutput
	)
	for _, b := range batch {
		blocks = append(blocks, b.Block)
		txs = append(txs, b.Txs...)
		inputs = append(inputs, b.Inputs...)
		outputs = append(outputs, b.Outputs...)
	}

	for chunk := range slices.Chunk(txs, transactionFlushThreshold) {
		if err = w.repo.InsertTransactions(ctx, chunk); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
	}
	for chunk := range slices.Chunk(inputs, inputFlushThreshold) {
		if err = w.repo.InsertTransactionInputs(ctx, chunk); err != nil {
			return fmt.Errorf("insert transaction inputs: %w", err)
		}
	}
	for chunk := range slices.Chunk(outputs, outputFlushThreshold) {
		if err = w.repo.InsertTransactionOutputs(ctx, chunk); err != nil {
			return fmt.Errorf("insert transaction outputs: %w", err)
		}
	}
	if err = w.repo.InsertBlocks(ctx, blocks); err != nil {
		return fmt.Errorf("insert blocks: %w", err)
	}

	w.logger.Debug("blocks written",
		zap.Int("blocks", len(blocks)),
		zap.Int("transactions", len(txs)),
		zap.Int("inputs", len(inputs)),
		zap.Int("outputs", len(outputs)),
	)
	return nil
}
