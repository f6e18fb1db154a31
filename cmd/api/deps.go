package main

import (
	"go.uber.org/zap"

	"horizon/internal/domain/linking"
	"horizon/internal/domain/reconcile"
	"horizon/internal/domain/transfer"
	"horizon/internal/domain/user"
	"horizon/internal/infrastructure/aggregator"
	"horizon/internal/infrastructure/crypto"
	"horizon/internal/infrastructure/paymentrail"
	"horizon/internal/infrastructure/postgres"
	httphandlers "horizon/internal/interfaces/http"
	"horizon/internal/shared/auth"
	"horizon/internal/shared/config"
	"horizon/internal/shared/handle"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	AuthHandler     *httphandlers.AuthHandler
	BankHandler     *httphandlers.BankHandler
	TransferHandler *httphandlers.TransferHandler

	// Auth
	JWT *auth.JWT

	Logger *zap.Logger
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.TokenKey)
	if err != nil {
		return nil, err
	}
	codec, err := handle.NewCodec(cfg.Encryption.HandleKey)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	linkRepo := postgres.NewBankLinkRepository(db)
	transferRepo := postgres.NewTransferRepository(db)

	// Provider gateways
	agg := aggregator.NewClient(cfg.Aggregator.BaseURL, cfg.Aggregator.ClientID, cfg.Aggregator.Secret, aggregator.Options{
		Timeout:       cfg.Aggregator.Timeout,
		SyncMaxPages:  cfg.Aggregator.SyncMaxPages,
		RetryAttempts: cfg.Aggregator.RetryAttempts,
	})
	rail := paymentrail.NewClient(cfg.PaymentRail.BaseURL, cfg.PaymentRail.Key, cfg.PaymentRail.Secret, cfg.PaymentRail.Timeout)

	// Domain services
	userService := user.NewService(userRepo, rail, logger)
	transferService := transfer.NewService(transferRepo, linkRepo, rail, logger)
	linker := linking.NewOrchestrator(agg, rail, linkRepo, encryptor, codec, logger)
	engine := reconcile.NewEngine(agg, linkRepo, transferRepo, encryptor, cfg.Reconcile.MaxConcurrency, logger)

	// Auth
	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Handlers
	authHandler := httphandlers.NewAuthHandler(userService, jwt, logger)
	bankHandler := httphandlers.NewBankHandler(linkRepo, userService, linker, engine, agg, logger)
	transferHandler := httphandlers.NewTransferHandler(transferService, logger)

	return &Dependencies{
		DB:              db,
		AuthHandler:     authHandler,
		BankHandler:     bankHandler,
		TransferHandler: transferHandler,
		JWT:             jwt,
		Logger:          logger,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
