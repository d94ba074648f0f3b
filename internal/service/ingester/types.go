package ingester

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Repository interface {
		MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (uint64, bool, error)
		InsertBlocks(ctx context.Context, blocks []model.Block) error
		InsertTransactions(ctx context.Context, txs []model.Transaction) error
		InsertTransactionInputs(ctx context.Context, inputs []model.TransactionInput) error
		InsertTransactionOutputs(ctx context.Context, outputs []model.TransactionOutput) error
	}

	BlockSource interface {
		LatestHeight(ctx context.Context) (uint64, error)
		FetchBlock(ctx context.Context, height uint64) ([]byte, error)
	}

	Metrics interface {
		ObserveProcessBatch(mode string, err error, blocks int, started time.Time)
		ObserveProcessBlock(mode string, err error, started time.Time)
		ObserveFlush(err error, started time.Time)
		ObserveTip(height uint64)
	}
)
