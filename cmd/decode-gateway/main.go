// Command decode-gateway serves the decoder over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/logging"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/transport"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

var config struct {
	Addr         string `long:"addr" env:"DECODE_GATEWAY_ADDR" description:"addr" default:":8001"`
	MaxBodyBytes int64  `long:"max-body-bytes" env:"DECODE_GATEWAY_MAX_BODY_BYTES" description:"largest accepted request body" default:"16777216"`
	LogLevel     string `long:"log-level" env:"DECODE_GATEWAY_LOG_LEVEL" description:"log level" default:"info"`
	LogJSON      bool   `long:"log-json" env:"DECODE_GATEWAY_LOG_JSON" description:"log as JSON"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if _, err := flags.ParseArgs(&config, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}
	logger, err := logging.New(config.LogLevel, config.LogJSON)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	handler := transport.NewDecodeHandler(
		logger,
		config.MaxBodyBytes,
		decoder.WithLogger(logger.Named("decoder")),
		decoder.WithObserver(metrics.NewDecoder("http")),
	)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              config.Addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", config.Addr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to listen and serve", zap.Error(err))
	}
}
