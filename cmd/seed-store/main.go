// seed-store bootstraps a store and its owner, then prints a bearer token
// for that owner. Running it again for the same store reuses the existing owner.
//
// Usage: go run ./cmd/seed-store -store "Main Store" -owner Alice
package main

import (
	"context"
	"flag"
	"log"
	"time"

	webAdapter "stock-ledger/internal/adapters/web"
	"stock-ledger/internal/config"
	"stock-ledger/internal/core"
	"stock-ledger/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	storeName := flag.String("store", "", "store name")
	ownerName := flag.String("owner", "", "owner display name, used only when the store has no owner yet")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("config: JWT_SECRET environment variable not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	owner, err := core.NewUserService(pool).EnsureStoreOwner(ctx, *storeName, *ownerName)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	token, err := webAdapter.IssueToken(cfg.JWTSecret, *owner, *ttl)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	log.Printf("store %d %q, owner %d %q", owner.StoreID, owner.StoreName, owner.ID, owner.Name)
	log.Printf("STOCKCTL_STORE_ID=%d STOCKCTL_OPERATOR_ID=%d", owner.StoreID, owner.ID)
	log.Printf("Authorization: Bearer %s", token)
}
