// Command fund deposits the configured total into the schedule's custody address.
// It stands in for the external funding step and is meant to run once per deployment.
package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/Dan9191/vesting-service/internal/config"
	"github.com/Dan9191/vesting-service/internal/repository"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	ledger := repository.NewRepository(db).TokenLedger(cfg.Vesting.Token)
	balance, err := ledger.BalanceOf(ctx, cfg.Vesting.Custody)
	if err != nil {
		logger.Fatalf("Failed to read custody balance: %v", err)
	}
	if balance.Sign() > 0 && os.Getenv("FUND_FORCE") == "" {
		logger.Fatalf("Custody %s already holds %s %s; set FUND_FORCE=1 to deposit again", cfg.Vesting.Custody, balance, cfg.Vesting.Token)
	}
	if err := ledger.Deposit(ctx, cfg.Vesting.Custody, cfg.Vesting.Total); err != nil {
		logger.Fatalf("Failed to fund custody: %v", err)
	}
	logger.Infof("Deposited %s %s into %s", cfg.Vesting.Total, cfg.Vesting.Token, cfg.Vesting.Custody)
}
