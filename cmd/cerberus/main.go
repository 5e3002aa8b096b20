package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/cerberus/adapters/chain"
	"github.com/layer-3/cerberus/adapters/config"
	"github.com/layer-3/cerberus/adapters/events"
	"github.com/layer-3/cerberus/adapters/store"
	"github.com/layer-3/cerberus/adapters/tokenizer"
	"github.com/layer-3/cerberus/ports"
	"github.com/layer-3/cerberus/service"
	transport "github.com/layer-3/cerberus/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path of the JSON config file")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "cerberus",
		JSONFormat: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(hclog.LevelFromString(cfg.Log.Level))

	var (
		allowlists ports.AllowlistRepository
		audit      ports.AuditPublisher
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		allowlists = store.NewRedisAllowlist(redisClient)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Error("failed to create audit publisher", "error", err)
			os.Exit(1)
		}
		audit = events.NewWatermillPublisher(publisher)
	} else {
		logger.Warn("no redis configured; using in-memory allowlists and dropping audit events")
		allowlists = store.NewMemoryAllowlist()
		audit = events.NopPublisher{}
	}

	endpoints := make(map[uint64]chain.Endpoints, len(cfg.RPC.Chains))
	for id, eps := range cfg.RPC.Chains {
		chainID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			logger.Error("invalid chain id in rpc config", "chain_id", id)
			os.Exit(1)
		}
		endpoints[chainID] = chain.Endpoints{Primary: eps.Primary, Fallback: eps.Fallback}
	}
	chainClient := chain.NewClient(endpoints, cfg.RPC.CallTimeout, logger)

	nonces := service.NewNonceStore(cfg.Auth.NonceTTL)
	nonces.Start()
	defer nonces.Shutdown()

	jwtTokenizer, err := tokenizer.NewJWTTokenizer([]byte(cfg.Auth.SigningKey), cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("failed to create tokenizer", "error", err)
		os.Exit(1)
	}

	verifier := service.NewSiweVerifier(cfg.Server.Domain, nonces, logger)
	authService := service.NewAuthService(nonces, verifier, jwtTokenizer, jwtTokenizer, audit, cfg.Auth.Scopes, logger)

	policyManager := service.NewPolicyManager(service.EvaluatorDeps{
		Chain:      chainClient,
		Cache:      service.NewResultCache(),
		Allowlists: allowlists,
		CacheTTL:   cfg.Cache.TTL,
		Logger:     logger,
	}, logger)
	if cfg.Policies.File != "" {
		policies, err := config.LoadPolicies(cfg.Policies.File)
		if err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
		if err := policyManager.Reload(policies); err != nil {
			logger.Error("failed to install policies", "error", err)
			os.Exit(1)
		}
	}

	limiter := service.NewRateLimiterRegistry(nil)
	router := transport.SetupRouter(authService, policyManager, limiter)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.ListenAddr, "domain", cfg.Server.Domain)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
