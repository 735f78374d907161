package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"texttools/coordinator"
	"texttools/logging"
	"texttools/storage"
)

type serveOptions struct {
	port      int
	redisAddr string
	dbPath    string
	ttl       time.Duration
	longPoll  time.Duration
	retention time.Duration
	msgSender string
	logLevel  string
	logFormat string
}

var opts serveOptions

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Development rollup coordinator for the text-processing DApp",
	Long: `Serves the rollup protocol (/finish, /notice, /report) to a single DApp
worker and a REST API under /api/v1 for submitting inputs and reading
their outputs.

State lives in memory. With --redis or --db it is also persisted and
restored on startup; inputs interrupted mid-processing are queued again.`,
	SilenceUsage: true,
	RunE:         runCoordinator,
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&opts.port, "port", 5004, "HTTP port")
	f.StringVar(&opts.redisAddr, "redis", "", "Redis address (e.g. localhost:6379)")
	f.StringVar(&opts.dbPath, "db", "", "SQLite database path, used when --redis is not set")
	f.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "Redis key TTL (0 keeps keys forever)")
	f.DurationVar(&opts.longPoll, "long-poll", 10*time.Second, "how long /finish waits for an input")
	f.DurationVar(&opts.retention, "retention", time.Hour, "how long finished inputs stay in memory")
	f.StringVar(&opts.msgSender, "msg-sender", coordinator.ZeroAddress, "msg_sender reported in advance metadata")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "console", "log format (json, console)")
}

func runCoordinator(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	store, err := storage.Open(opts.redisAddr, opts.dbPath, opts.ttl)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node := coordinator.NewNode(coordinator.Options{
		LongPoll:  opts.longPoll,
		Retention: opts.retention,
		MsgSender: opts.msgSender,
	}, store, logger)

	if err := node.Restore(ctx); err != nil {
		logger.Warn("Failed to restore state", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	// Long-polling /finish handlers return as soon as we are told to stop.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", opts.port),
		Handler:     node.Router(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Coordinator listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return node.PruneLoop(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Coordinator stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
