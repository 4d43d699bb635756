package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/mux"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/api"
	"github.com/Elishaokon13/loonpay/internal/chain"
	"github.com/Elishaokon13/loonpay/internal/config"
	"github.com/Elishaokon13/loonpay/internal/exchange"
	"github.com/Elishaokon13/loonpay/internal/giftcard"
	"github.com/Elishaokon13/loonpay/internal/service"
	"github.com/Elishaokon13/loonpay/internal/store"
)

const providerLatency = 1500 * time.Millisecond

// LoadConfig loads the default configuration and overrides it with the config
// file specified by the path defined in the config flag.
func LoadConfig() *koanf.Koanf {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Parse()
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if *configPath != "" {
		_ = k.Load(file.Provider(*configPath), yaml.Parser())
	}
	return k
}

func main() {
	k := LoadConfig()
	cfg := config.Config{}

	if err := k.Unmarshal("", &cfg); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// The connection string is the one externally supplied value; the env var
	// wins over anything in the config file.
	if dbSource := os.Getenv("DB_SOURCE"); dbSource != "" {
		cfg.Postgres.URI = dbSource
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = "logfmt"
	_ = zapCfg.Level.UnmarshalText([]byte(cfg.Logger.Level))
	zapCfg.InitialFields = make(map[string]any)
	zapCfg.InitialFields["host"], _ = os.Hostname()
	zapCfg.InitialFields["service"] = cfg.Application
	zapCfg.OutputPaths = []string{"stdout"}
	logger, _ := zapCfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ledgerStore, err := store.NewStore(cfg.Postgres.URI)
	if err != nil {
		logger.Fatal("cannot connect to database", zap.Error(err))
	}
	defer ledgerStore.Close()

	registry, err := giftcard.NewRegistry(cfg.Providers)
	if err != nil {
		logger.Fatal("cannot build provider registry", zap.Error(err))
	}

	calc := exchange.NewCalculator(cfg.Exchange.Rate, cfg.Exchange.FeeRate)
	gateway := chain.NewSimulatedGateway(cfg.Chain)

	var clientLatency time.Duration
	if cfg.Chain.SimulateLatency {
		clientLatency = providerLatency
	}
	providerClient := service.NewSimulatedProviderClient(clientLatency)

	offerTTL := time.Duration(cfg.Offer.TTLMinutes) * time.Minute
	validation := service.NewValidationService(registry, providerClient, calc, offerTTL, logger)
	settlement := service.NewSettlementService(ledgerStore, gateway, cfg.Chain, logger)

	handler := api.NewHandler(validation, settlement, ledgerStore, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiR := r.PathPrefix("/api").Subrouter()
	apiR.HandleFunc("/validate", handler.ValidateHandler).Methods("POST")
	apiR.HandleFunc("/transactions", handler.CreateTransactionHandler).Methods("POST")
	apiR.HandleFunc("/settle", handler.SettleHandler).Methods("POST")
	apiR.HandleFunc("/status", handler.StatusHandler).Methods("GET")

	admin := apiR.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/transactions", handler.ListTransactionsHandler).Methods("GET")
	admin.HandleFunc("/transactions/{id}", handler.GetTransactionHandler).Methods("GET")
	admin.HandleFunc("/stats", handler.StatsHandler).Methods("GET")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
