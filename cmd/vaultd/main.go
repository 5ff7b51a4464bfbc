package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakevault/config"
	"stakevault/core/bank"
	"stakevault/core/state"
	"stakevault/gateway/middleware"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
	"stakevault/observability"
	"stakevault/observability/logging"
	"stakevault/services/vaultd/server"
	"stakevault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "vaultd.toml", "path to vaultd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Logging is not configured yet; stderr is all we have.
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("vaultd", cfg.Service.Environment, logging.ParseLevel(cfg.Service.LogLevel))

	db, err := storage.NewLevelDB(cfg.Storage.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.Storage.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	bk, err := bank.New(db, cfg.CustodyAddress(), cfg.InitialConversionIndex(), cfg.InitialAssetPrice())
	if err != nil {
		logger.Error("initialise bank", "error", err)
		os.Exit(1)
	}

	ledger := state.NewLedger(db)
	if err := ledger.Bootstrap(cfg.Terms()); err != nil {
		logger.Error("bootstrap terms", "error", err)
		os.Exit(1)
	}

	engine, err := vault.NewEngine(cfg.TreasuryAddress(), bk, bk, bk.StakedAsset(), bk.SharesAsset())
	if err != nil {
		logger.Error("construct engine", "error", err)
		os.Exit(1)
	}
	engine.SetState(ledger)
	engine.SetClock(func() uint64 { return uint64(time.Now().Unix()) })

	pauses := nativecommon.NewPauseSet()
	engine.SetPauses(pauses)

	srv := server.New(server.Config{
		Engine:    engine,
		Bank:      bk,
		DebtToken: bk,
		Pauses:    pauses,
		Logger:    logger,
		Metrics:   observability.Vault(),
		Auth: middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ScopeClaim: cfg.Auth.ScopeClaim,
			ClockSkew:  cfg.AuthClockSkew(),
		},
		RateLimit: middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	})

	httpServer := &http.Server{
		Addr:         cfg.Service.ListenAddress,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Service.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.Service.ListenAddress, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("vaultd listening", "address", listener.Addr().String())
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "error", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("vaultd stopped")
}
