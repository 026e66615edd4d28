// Command seed creates the bootstrap staff account.
package main

import (
	"context"
	"os"
	"time"

	"github.com/iliyamo/civic-budget/internal/config"
	"github.com/iliyamo/civic-budget/internal/database"
	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
	"github.com/iliyamo/civic-budget/internal/service"
)

func main() {
	cfg := config.Load()
	seed := config.LoadSeedConfig()
	log, closer := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database unavailable", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts := service.NewAccountService(repository.NewUserRepo(db), cfg.BcryptCost)
	created, err := accounts.SeedAdmin(ctx, seed.Email, seed.Password, seed.Name, model.Role(seed.Role), seed.Tokens)
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("staff account created", "email", seed.Email, "role", seed.Role, "tokens", seed.Tokens)
	} else {
		log.Info("staff account already exists", "email", seed.Email)
	}
}
