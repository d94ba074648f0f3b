package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const (
	defaultFetchAttempts = 3
	defaultFetchDelay    = 500 * time.Millisecond
)

// RawBlockSource fetches serialized blocks by height.
type RawBlockSource struct {
	rpc      BlockRPC
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// NewRawBlockSource builds a RawBlockSource that retries failed fetches.
func NewRawBlockSource(rpc BlockRPC, logger *zap.Logger) *RawBlockSource {
	return &RawBlockSource{
		rpc:      rpc,
		attempts: defaultFetchAttempts,
		delay:    defaultFetchDelay,
		logger:   logger,
	}
}

// LatestHeight returns the height of the node's best block.
func (s *RawBlockSource) LatestHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := s.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative block count %d", count)
	}
	return uint64(count), nil
}

// FetchBlock returns the serialized block at height.
func (s *RawBlockSource) FetchBlock(ctx context.Context, height uint64) ([]byte, error) {
	if height > math.MaxInt64 {
		return nil, fmt.Errorf("block height %d out of range", height)
	}

	var block []byte
	err := retry.Do(
		func() error {
			hash, err := s.rpc.GetBlockHash(int64(height))
			if err != nil {
				return fmt.Errorf("get block hash %d: %w", height, err)
			}
			block, err = s.rpc.GetRawBlock(hash)
			if err != nil {
				return fmt.Errorf("get raw block %s: %w", hash, err)
			}
			if len(block) == 0 {
				return retry.Unrecoverable(errors.New("empty raw block"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("fetch block failed, retrying",
				zap.Uint64("height", height),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch block %d: %w", height, err)
	}
	return block, nil
}
