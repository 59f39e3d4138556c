// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/config"
	"github.com/javajoker/authchain/internal/database"
	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/router"
	"github.com/javajoker/authchain/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := setupLogger(cfg)

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	ids, err := ledger.NewIdentities(
		cfg.Identities.CreatorPrivateKey,
		cfg.Identities.PurchaserPrivateKey,
		cfg.Identities.OwnerPrivateKey,
		cfg.RequireKeys(),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to load signing identities")
	}
	if ids.Ephemeral {
		log.Warn("Some signing keys were generated at start-up; set CREATOR_PRIVATE_KEY, USER_PRIVATE_KEY and OWNER_PRIVATE_KEY to keep identities across restarts")
	}
	log.WithFields(logrus.Fields{
		"creator":   ids.Creator.Address.Hex(),
		"purchaser": ids.Purchaser.Address.Hex(),
		"owner":     ids.Owner.Address.Hex(),
	}).Info("Signing identities loaded")

	contract, closeContract, err := openContract(cfg, ids, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open ledger")
	}
	defer closeContract()

	store, err := services.NewContentStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize content store")
	}

	marketplace := services.NewMarketplaceService(contract, ids, log)
	content := services.NewContentService(store, marketplace, services.UploadOptions{
		MaxSize:      cfg.Content.MaxSize,
		AllowedTypes: cfg.Content.AllowedTypes,
	}, log)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r, stopRouter := router.Initialize(cfg, router.Dependencies{
		Marketplace: marketplace,
		Content:     content,
		Identities:  services.NewMockIdentityProvider(ids, cfg.JWT.AccessTokenTTL),
		Logger:      log,
	})
	defer stopRouter()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Server.Port,
			"ledger": contract.Backend(),
			"store":  store.Backend(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.Environment == "production" || cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithError(err).Warn("Invalid LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// openContract connects to the configured ledger backend. The returned close
// function releases the database or RPC connection.
func openContract(cfg *config.Config, ids *ledger.Identities, log *logrus.Logger) (ledger.Contract, func(), error) {
	switch cfg.Ledger.Backend {
	case ledger.BackendEthereum:
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Ledger.DialTimeout)*time.Second)
		defer cancel()

		eth, err := ledger.DialEthereum(ctx, cfg.Ledger.RPCURL, common.HexToAddress(cfg.Ledger.ContractAddress), log)
		if err != nil {
			return nil, nil, err
		}
		return eth, eth.Close, nil

	case ledger.BackendLocal:
		genesis, err := ledger.ParseEther(cfg.Ledger.GenesisBalance)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid LEDGER_GENESIS_BALANCE: %w", err)
		}
		funds := map[common.Address]*big.Int{}
		for _, signer := range []ledger.Signer{ids.Creator, ids.Purchaser, ids.Owner} {
			funds[signer.Address] = new(big.Int).Set(genesis)
		}

		closeFn := func() {}
		var journal ledger.Journal
		if ids.Ephemeral {
			// a durable journal replays as the previous run's accounts
			log.Warn("Ledger journal kept in memory because identities are ephemeral")
			journal = ledger.NewMemoryJournal()
		} else {
			db, err := database.Initialize(cfg.Database)
			if err != nil {
				return nil, nil, err
			}
			if cfg.Database.AutoMigrate {
				if err := database.RunMigrations(db); err != nil {
					database.Close(db)
					return nil, nil, err
				}
			}
			journal = ledger.NewGormJournal(db)
			closeFn = func() { database.Close(db) }
		}

		local, err := ledger.NewLocalLedger(context.Background(), ledger.LocalOptions{
			Owner:   ids.Owner.Address,
			Genesis: funds,
			Journal: journal,
			Logger:  log,
		})
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return local, closeFn, nil
	}

	return nil, nil, fmt.Errorf("unsupported ledger backend %q", cfg.Ledger.Backend)
}
