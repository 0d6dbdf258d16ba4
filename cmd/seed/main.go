// Seeds starter wallet balances for the operator accounts listed in config.
// Safe to re-run: accounts that already hold coins are left alone.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"telegram-tier-entitlements/internal/config"
	pg "telegram-tier-entitlements/internal/infra/db/postgres"
)

const starterBalance = 1000

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	wallets := pg.NewWalletRepo(pool)

	seeded := 0
	for _, accountID := range cfg.Bot.AdminIDs {
		balance, err := wallets.Balance(ctx, accountID)
		if err != nil {
			log.Fatalf("balance %d: %v", accountID, err)
		}
		if balance > 0 {
			fmt.Printf("account %d already holds %d coins. Skipped.\n", accountID, balance)
			continue
		}
		if err := wallets.Credit(ctx, accountID, starterBalance); err != nil {
			log.Fatalf("credit %d: %v", accountID, err)
		}
		seeded++
	}
	fmt.Printf("Seeded %d wallet(s) with %d coins each.\n", seeded, starterBalance)
}
