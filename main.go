package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
)

func main() {
	var logConf log.Config
	if err := cleanenv.ReadEnv(&logConf); err != nil {
		panic(err)
	}
	logger := log.NewZapLogger(logConf).WithName("docvault")

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	shutdownTracing, err := SetupTracing(context.Background(), config.OtelEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", "error", err)
	}

	signer, err := sign.NewEthereumSigner(config.PrivateKeyHex)
	if err != nil {
		logger.Fatal("failed to initialise signer", "error", err)
	}
	logger.Info("vault signer initialized", "address", signer.Address())

	state, err := NewState(config.State, logger)
	if err != nil {
		logger.Fatal("failed to set up state", "error", err)
	}

	kdsCtx, stopKDS := context.WithCancel(context.Background())
	defer stopKDS()
	kds, err := vetkd.NewRPCClient(vetkd.RPCClientConfig{
		URL:       config.KDSURL,
		ServiceID: config.VetKD.ServiceAddress(),
		Signer:    signer,
		Dialer:    rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig),
		ConnCtx:   kdsCtx,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to initialise key derivation client", "error", err)
	}

	metrics := NewMetrics()
	vault := NewVault(state, kds, config.VetKD, metrics)

	router, err := NewRPCRouter(signer, vault, config.VetKD, metrics, otel.GetTracerProvider(), logger)
	if err != nil {
		logger.Fatal("failed to initialise RPC router", "error", err)
	}

	rpcListenEndpoint := "/ws"
	rpcMux := http.NewServeMux()
	rpcMux.Handle(rpcListenEndpoint, router.Node)

	rpcServer := &http.Server{
		Addr:    config.RPCListenAddr,
		Handler: rpcMux,
	}

	metricsEndpoint := "/metrics"
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    config.MetricsListenAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", config.MetricsListenAddr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("RPC server available", "listenAddr", config.RPCListenAddr, "endpoint", rpcListenEndpoint)
		if err := rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("RPC server failure", "error", err)
		}
	}()

	// Wait for shutdown signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rpcServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down RPC server", "error", err)
	}

	stopKDS()
	if err := shutdownTracing(context.Background()); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("shutdown complete")
}
