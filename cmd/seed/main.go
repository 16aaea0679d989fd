package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"invoice-ocr-platform/internal/config"
	"invoice-ocr-platform/internal/domain/model"
	pg "invoice-ocr-platform/internal/infra/db/postgres"
)

// Seeds a development tenant with an active pro subscription and a starting
// credit balance so the API can be exercised right after `docker compose up`.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	tenantRepo := pg.NewTenantRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	billingRepo := pg.NewBillingRepo(pool)

	tenants, err := tenantRepo.List(ctx, nil, 1, 0)
	if err != nil {
		log.Fatalf("list tenants: %v", err)
	}
	if len(tenants) > 0 {
		fmt.Println("tenants already present, no changes")
		return
	}

	plan, err := planRepo.FindByName(ctx, nil, "pro")
	if err != nil {
		log.Fatalf("find pro plan: %v", err)
	}

	tenant := model.NewTenant("demo", "demo@example.com")
	if err := tenantRepo.Save(ctx, nil, tenant); err != nil {
		log.Fatalf("save tenant: %v", err)
	}

	now := time.Now()
	sub := model.NewTenantSubscription(tenant.ID, plan.ID, now, now.AddDate(0, 1, 0))
	if err := subRepo.Save(ctx, nil, sub); err != nil {
		log.Fatalf("save subscription: %v", err)
	}

	if err := billingRepo.CreateAccount(ctx, nil, tenant.ID); err != nil {
		log.Fatalf("create billing account: %v", err)
	}
	if err := billingRepo.ApplyDelta(ctx, nil, tenant.ID, plan.CreditsIncluded); err != nil {
		log.Fatalf("grant credits: %v", err)
	}
	entry := model.NewLedgerEntry(tenant.ID, nil, model.LedgerEventCreditTopup, plan.CreditsIncluded, "seed grant")
	if err := billingRepo.AppendLedger(ctx, nil, entry); err != nil {
		log.Fatalf("append ledger: %v", err)
	}

	fmt.Printf("seeded tenant %s on plan %s with %d credits\n", tenant.ID, plan.Name, plan.CreditsIncluded)
	fmt.Printf("api key: %s\n", tenant.APIKey)
}
