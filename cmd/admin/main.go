package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gogogo1024/filegate/internal/admin"
	"github.com/gogogo1024/filegate/internal/observability"
	"github.com/gogogo1024/filegate/transfer"
)

func main() {
	// Prevent a test binary from starting the listener.
	if strings.HasSuffix(filepath.Base(os.Args[0]), ".test") {
		return
	}

	var (
		addr         = flag.String("addr", ":8888", "admin service address")
		redisAddr    = flag.String("redis", "localhost:6379", "redis address")
		redisPrefix  = flag.String("redis-prefix", "filegate:file:", "redis key prefix for stored files")
		maxUpload    = flag.Int64("max-upload", admin.DefaultMaxUpload, "largest accepted upload in bytes")
		noAudit      = flag.Bool("no-audit", false, "disable the redis audit log")
		logLevel     = flag.String("log-level", "info", "log level")
		readTimeout  = flag.Duration("read-timeout", 30*time.Second, "read timeout")
		writeTimeout = flag.Duration("write-timeout", 10*time.Second, "write timeout")
		idleTimeout  = flag.Duration("idle-timeout", 60*time.Second, "idle timeout")
	)
	flag.Parse()

	logger, err := observability.SetupLogger(observability.LogConfig{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "filegate-admin:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Fatal("redis connection failed", zap.String("redis", *redisAddr), zap.Error(err))
	}

	opts := []admin.Option{admin.WithMaxUpload(*maxUpload), admin.WithLogger(logger.Named("admin"))}
	if !*noAudit {
		opts = append(opts, admin.WithAudit(client))
	}
	svc := admin.NewService(transfer.NewRedisStore(client, *redisPrefix), opts...)

	mux := http.NewServeMux()
	svc.Routes(mux)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
		IdleTimeout:  *idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("admin service listening", zap.String("addr", *addr), zap.String("redis", *redisAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
