package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/app"
	"stock-ledger/internal/config"
	"stock-ledger/internal/core"
	"stock-ledger/internal/db"
	"stock-ledger/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	storeID := flag.Int("store", envInt("STOCKCTL_STORE_ID"), "store id (STOCKCTL_STORE_ID)")
	operatorID := flag.Int("operator", envInt("STOCKCTL_OPERATOR_ID"), "operator user id (STOCKCTL_OPERATOR_ID)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, cli.Usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// CLI output goes to stdout; keep the logger quiet unless something is wrong.
	log, err := logger.New("warn", "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	services := app.NewServices(pool, log, core.RunnerConfig{
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
		LockTimeout: cfg.LockTimeout,
	})
	svc := app.NewAppService(pool, services)

	actor := core.Actor{StoreID: *storeID, OperatorID: *operatorID}
	if err := cli.Run(ctx, svc, actor, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}
