package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arvil-systems/poolkeeper/config"
	"github.com/arvil-systems/poolkeeper/examples/inmemfactory"
	metricsprom "github.com/arvil-systems/poolkeeper/metrics/prometheus"
	"github.com/arvil-systems/poolkeeper/pkg/poolkeeper"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configPath := getenv("POOLKEEPERD_CONFIG", "pools.yaml")
	addr := getenv("POOLKEEPERD_ADDR", ":9090")

	cfgs, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("loading pool config", zap.String("path", configPath), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	sink := metricsprom.New("poolkeeperd", registry)

	factory := inmemfactory.New(inmemfactory.WithSpawnConcurrency(8))
	defer factory.Close()

	coord := poolkeeper.New(factory, poolkeeper.WithLogger(logger), poolkeeper.WithMetricsSink(sink))
	defer coord.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := coord.AddPools(ctx, cfgs); err != nil {
		cancel()
		logger.Fatal("registering pools", zap.Error(err))
	}
	cancel()
	logger.Info("pools registered", zap.Int("count", len(cfgs)))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := coord.Report(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("poolkeeperd listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("poolkeeperd stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
