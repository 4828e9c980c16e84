package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gogogo1024/filegate"
	"github.com/gogogo1024/filegate/internal/observability"
	"github.com/gogogo1024/filegate/internal/service"
	"github.com/gogogo1024/filegate/transfer"
)

func main() {
	// In some environments `go test ./...` may execute command mains.
	// Avoid starting a long-running listener from a test binary.
	if strings.HasSuffix(filepath.Base(os.Args[0]), ".test") {
		return
	}

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "filegate:", err)
		os.Exit(2)
	}

	logger, err := observability.SetupLogger(cfg.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "filegate:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	listener, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		return err
	}

	logger.Info("filegate listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("addr_source", string(cfg.source("addr"))),
		zap.String("storage", cfg.storage),
		zap.Duration("idle_timeout", cfg.idleTimeout),
		zap.String("idle_timeout_source", string(cfg.source("idle-timeout"))),
		zap.Duration("write_timeout", cfg.writeTimeout),
		zap.String("write_timeout_source", string(cfg.source("write-timeout"))),
		zap.Int("max_conns", cfg.maxConns),
		zap.String("config", cfg.configPath),
		zap.Bool("config_loaded", cfg.configLoaded),
		zap.Bool("dotenv_loaded", cfg.dotenvLoaded),
	)

	svc := transfer.NewService(store, transfer.WithServiceLogger(logger.Named("transfer")))
	setup := func(r *filegate.Router) error {
		service.RegisterHandlers(r, svc)
		return nil
	}
	opts := append(cfg.serveOptions(), filegate.WithLogger(logger.Named("server")))
	return filegate.ServeWithContext(ctx, listener, setup, opts...)
}

func openStore(ctx context.Context, cfg serverConfig, logger *zap.Logger) (transfer.FileStore, func(), error) {
	switch cfg.storage {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.redisAddr, err)
		}
		logger.Info("serving files from redis",
			zap.String("redis_addr", cfg.redisAddr),
			zap.String("key_prefix", cfg.redisPrefix))
		return transfer.NewRedisStore(client, cfg.redisPrefix), func() { _ = client.Close() }, nil
	default:
		store, err := transfer.NewDirStore(cfg.root)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("serving files from directory", zap.String("root", store.Dir()))
		return store, func() { _ = store.Close() }, nil
	}
}
