package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/arkiv"
	"github.com/sub0-labs/funding-oracle/pkg/config"
	"github.com/sub0-labs/funding-oracle/pkg/database"
	"github.com/sub0-labs/funding-oracle/pkg/escrow"
	"github.com/sub0-labs/funding-oracle/pkg/handlers"
	"github.com/sub0-labs/funding-oracle/pkg/llm"
	"github.com/sub0-labs/funding-oracle/pkg/logging"
	"github.com/sub0-labs/funding-oracle/pkg/middleware"
	"github.com/sub0-labs/funding-oracle/pkg/repositories"
	"github.com/sub0-labs/funding-oracle/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("arkiv_rpc", cfg.Arkiv.RPCURL),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("escrow_deployer", cfg.Escrow.DeployerURL))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	chainState, err := arkiv.NewHTTPClient(arkiv.Config{
		RPCURL:      cfg.Arkiv.RPCURL,
		PrivateKey:  cfg.Arkiv.PrivateKey,
		AccountName: cfg.Arkiv.AccountName,
		Timeout:     cfg.Arkiv.Timeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create chain-state client", zap.Error(err))
	}

	// Without an AI endpoint the evaluation service scores heuristically.
	var scoringClient llm.LLMClient
	if cfg.AI.Endpoint != "" || cfg.AI.APIKey != "" {
		scoringClient, err = llm.NewScoringClient(cfg.AI.Provider, &llm.Config{
			Endpoint: cfg.AI.Endpoint,
			Model:    cfg.AI.Model,
			APIKey:   cfg.AI.APIKey,
			Timeout:  cfg.AI.Timeout(),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create scoring client", zap.Error(err))
		}
	}

	deployer, err := escrow.NewHTTPDeployer(escrow.Config{
		BaseURL: cfg.Escrow.DeployerURL,
		Timeout: cfg.Escrow.Timeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create escrow deployer", zap.Error(err))
	}

	sponsoredRepo := repositories.NewSponsoredProjectRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	milestoneRepo := repositories.NewMilestoneRepository(db)

	orchestrator := services.NewOrchestrator(
		sponsoredRepo,
		projectRepo,
		milestoneRepo,
		chainState,
		services.NewEvaluationService(scoringClient, cfg.AI.Timeout(), logger),
		services.NewEscrowService(deployer, cfg.Escrow.Chain, cfg.Escrow.MilestoneCount, logger),
		logger,
	)
	insights := services.NewInsightsService(sponsoredRepo, scoringClient, cfg.AI.Timeout(), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSponsoredHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewEvaluationHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewModerationHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewEscrowHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewInsightsHandler(insights, logger).RegisterRoutes(mux)

	handler := middleware.Recover(logger)(middleware.RequestLogger(logger)(mux))

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting funding-oracle",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
