package ingester

import "time"

const (
	modeFiles = "files"
	modeNode  = "node"

	defaultWorkerCount = 4

	defaultFlushSize     = 100
	defaultFlushInterval = 30 * time.Second
	defaultFlushRate     = 20

	defaultPollInterval        = 10 * time.Second
	defaultHeightChunk  uint64 = 500
	maxBackoff                 = 5 * time.Minute

	transactionFlushThreshold = 10_000
	inputFlushThreshold       = 50_000
	outputFlushThreshold      = 50_000
)
