package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	executor "github.com/vearne/boundedexecutor"
	"github.com/vearne/boundedexecutor/web"
)

/*
	curl http://localhost:8080/asyncThread
	curl http://localhost:8080/hello
	curl http://localhost:8080/stats
	curl http://localhost:8080/metrics
*/

func main() {
	var (
		configPath = flag.String("config", "", "pool config file (.yaml, .yml or .json)")
		addr       = flag.String("addr", web.DefaultAddr, "listen address")
		work       = flag.Duration("work", web.DefaultWorkDuration, "duration of the background job")
		grace      = flag.Duration("grace", 10*time.Second, "shutdown deadline")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger, *configPath, *addr, *work, *grace); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger, configPath, addr string, work, grace time.Duration) error {
	cfg := executor.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = executor.LoadConfig(configPath); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := executor.NewMetrics(reg, "boundedexecutor")
	if err != nil {
		return err
	}

	pool, err := executor.NewBoundedPoolFromConfig(context.Background(), cfg, executor.WithMetrics(metrics))
	if err != nil {
		return err
	}
	logger.Info("pool started",
		zap.Int("core_workers", cfg.CoreWorkers),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("queue_capacity", cfg.QueueCapacity),
		zap.Stringer("overflow_policy", cfg.OverflowPolicy),
		zap.String("name_prefix", cfg.NamePrefix),
	)

	srv := web.NewServer(pool, web.Options{
		Addr:         addr,
		WorkDuration: work,
		Logger:       logger,
		Gatherer:     reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("grace", grace))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := pool.ShutdownContext(shutdownCtx, executor.ShutdownGraceful); err != nil {
			logger.Warn("pool did not drain in time, cancelling tasks", zap.Error(err))
			pool.ShutdownAndWait(executor.ShutdownImmediate)
		}
		logger.Info("pool terminated", zap.Any("stats", pool.Stats()))
		return errors.Join(errs...)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
