// Command blockdecode prints the records of raw Bitcoin blocks, headers and
// transactions as newline-delimited JSON.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/logging"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type config struct {
	Hex        string        `long:"hex" description:"decode this hex string instead of reading input"`
	Blk        bool          `long:"blk" description:"input is a blk*.dat file holding framed blocks"`
	Header     bool          `long:"header" description:"input is a bare 80-byte block header"`
	Tx         bool          `long:"tx" description:"input is exactly one transaction"`
	Summary    bool          `long:"summary" description:"print one summary line per block instead of its records"`
	Network    model.Network `long:"network" env:"BLOCKDECODE_NETWORK" default:"mainnet" description:"network of blk file magic and addresses"`
	LegacyFlag bool          `long:"legacy-flag" description:"read a zero marker followed by a flag other than 1 as an empty legacy input list"`
	LogLevel   string        `long:"log-level" env:"BLOCKDECODE_LOG_LEVEL" default:"warn" description:"log level"`
	LogJSON    bool          `long:"log-json" env:"BLOCKDECODE_LOG_JSON" description:"log as JSON"`
	Args       struct {
		Input string `positional-arg-name:"FILE" description:"input file, stdin when empty or -"`
	} `positional-args:"yes"`
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	runErr := run(ctx, cfg, os.Stdin, out, logger)
	if err := out.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush output: %w", err)
	}
	if runErr != nil {
		logger.Error("decode failed", zap.Error(runErr))
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
