// Command ingester stores decoded blocks in ClickHouse, reading either blk
// files or a node over RPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/logging"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/service/ingester"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	Mode          string        `long:"mode" env:"INGESTER_MODE" choice:"files" choice:"node" default:"node" description:"read blocks from blk files or from a node"`
	ClickhouseDSN string        `long:"clickhouse-dsn" env:"INGESTER_CLICKHOUSE_DSN" description:"ClickHouse DSN" required:"true"`
	Network       model.Network `long:"network" env:"INGESTER_NETWORK" default:"mainnet" description:"network name"`
	RPCURL        string        `long:"rpc-url" env:"INGESTER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser       string        `long:"rpc-user" env:"INGESTER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword   string        `long:"rpc-password" env:"INGESTER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	From          *uint64       `long:"from" env:"INGESTER_FROM" description:"first height to ingest in node mode; resumes from storage when unset"`
	To            *uint64       `long:"to" env:"INGESTER_TO" description:"last height to ingest in node mode; follows the tip when unset"`
	Workers       int           `long:"workers" env:"INGESTER_WORKERS" default:"4" description:"concurrent files or heights"`
	FlushSize     int           `long:"flush-size" env:"INGESTER_FLUSH_SIZE" default:"100" description:"blocks per storage batch"`
	FlushInterval time.Duration `long:"flush-interval" env:"INGESTER_FLUSH_INTERVAL" default:"30s" description:"maximum delay before a partial batch is written"`
	PollInterval  time.Duration `long:"poll-interval" env:"INGESTER_POLL_INTERVAL" default:"10s" description:"delay between tip checks once caught up"`
	LegacyFlag    bool          `long:"legacy-flag" env:"INGESTER_LEGACY_FLAG" description:"read a zero marker followed by a flag other than 1 as an empty legacy input list"`
	MetricsAddr   string        `long:"metrics-addr" env:"INGESTER_METRICS_ADDR" description:"address for metrics server" default:":2112"`
	LogLevel      string        `long:"log-level" env:"INGESTER_LOG_LEVEL" default:"info" description:"log level"`
	LogJSON       bool          `long:"log-json" env:"INGESTER_LOG_JSON" description:"log as JSON"`
	Args          struct {
		Files []string `positional-arg-name:"BLKFILE" description:"blk files to ingest in files mode"`
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
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("ingester failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	if cfg.Mode == "files" && len(cfg.Args.Files) == 0 {
		return errors.New("files mode needs at least one blk file")
	}

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close repository", zap.Error(err))
		}
	}()

	decodeOpts := []decoder.Option{
		decoder.WithLogger(logger.Named("decoder")),
		decoder.WithObserver(metrics.NewDecoder(cfg.Mode)),
	}
	if cfg.LegacyFlag {
		decodeOpts = append(decodeOpts, decoder.WithLegacyFlagFallback())
	}
	svcCfg := ingester.Config{
		Workers:       cfg.Workers,
		FlushSize:     cfg.FlushSize,
		FlushInterval: cfg.FlushInterval,
		PollInterval:  cfg.PollInterval,
		DecodeOptions: decodeOpts,
	}
	svcMetrics := metrics.NewIngester(model.BTC, cfg.Network)

	if cfg.Mode == "files" {
		svc, err := ingester.NewService(repo, nil, svcMetrics, cfg.Network, logger, svcCfg)
		if err != nil {
			return err
		}
		return svc.IngestFiles(ctx, cfg.Args.Files)
	}

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()

	rpc := bitcoin.NewRPCClient(rpcClient, metrics.NewRPCClient(model.BTC, cfg.Network))
	source := bitcoin.NewRawBlockSource(rpc, logger.Named("rawBlockSource"))
	svc, err := ingester.NewService(repo, source, svcMetrics, cfg.Network, logger, svcCfg)
	if err != nil {
		return err
	}

	if cfg.From == nil && cfg.To == nil {
		return svc.Run(ctx)
	}

	var from, to uint64
	if cfg.From != nil {
		from = *cfg.From
	}
	if cfg.To != nil {
		to = *cfg.To
	} else {
		if to, err = source.LatestHeight(ctx); err != nil {
			return err
		}
	}
	return svc.IngestHeights(ctx, from, to)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
