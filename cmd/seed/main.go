package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seeds a demo head with a circle and two funded members so the API can be
// exercised immediately after bring-up.

var (
	adaID   = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	bayoID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	chidiID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	ajoID   = uuid.MustParse("00000000-0000-0000-0000-000000000101")
)

func main() {
	env := getEnv("AJO_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: AJO_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "remittra"),
		getEnv("POSTGRES_PASSWORD", "remittra"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "remittra"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)

	if err := storage.RunMigrations(dsn); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	if err := seedWallets(ctx, pool); err != nil {
		log.Fatalf("seed wallets: %v", err)
	}
	fmt.Println("✓ Wallets seeded")

	if err := seedCircle(ctx, pool); err != nil {
		log.Fatalf("seed circle: %v", err)
	}
	fmt.Println("✓ Demo circle seeded")

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo users:")
	fmt.Printf("  ada@example.com   (head,   tier 2)  %s\n", adaID)
	fmt.Printf("  bayo@example.com  (member, tier 1)  %s\n", bayoID)
	fmt.Printf("  chidi@example.com (member, tier 1)  %s\n", chidiID)
	fmt.Printf("\nDemo circle: %s (cycle amount 5000)\n", ajoID)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	users := []struct {
		id    uuid.UUID
		email string
		level int
	}{
		{adaID, "ada@example.com", 2},
		{bayoID, "bayo@example.com", 1},
		{chidiID, "chidi@example.com", 1},
	}

	now := time.Now().UTC()
	for _, u := range users {
		if _, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, verification_level, active, created_at)
			VALUES ($1, $2, $3, true, $4)
			ON CONFLICT (id) DO UPDATE
			SET verification_level = EXCLUDED.verification_level
		`, u.id, u.email, u.level, now); err != nil {
			return err
		}
	}
	return nil
}

func seedWallets(ctx context.Context, pool *pgxpool.Pool) error {
	balances := map[uuid.UUID]int64{
		adaID:   100_000,
		bayoID:  25_000,
		chidiID: 25_000,
	}

	now := time.Now().UTC()
	for userID, available := range balances {
		walletID := uuid.New()
		if _, err := pool.Exec(ctx, `
			INSERT INTO wallets (id, user_id, available, locked, updated_at)
			VALUES ($1, $2, $3, 0, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET available = EXCLUDED.available,
			    locked = 0,
			    updated_at = EXCLUDED.updated_at
		`, walletID, userID, available, now); err != nil {
			return err
		}
	}
	return nil
}

func seedCircle(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now().UTC()

	if _, err := pool.Exec(ctx, `
		INSERT INTO ajos (id, name, created_by, cycle_amount, cycle_duration, current_cycle, created_at)
		VALUES ($1, $2, $3, 5000, 7, 1, $4)
		ON CONFLICT (id) DO NOTHING
	`, ajoID, "demo osusu", adaID, now); err != nil {
		return err
	}

	members := []struct {
		userID uuid.UUID
		isHead bool
	}{
		{adaID, true},
		{bayoID, false},
		{chidiID, false},
	}
	for i, m := range members {
		// Stagger created_at so rotation order is deterministic.
		joined := now.Add(time.Duration(i) * time.Second)
		if _, err := pool.Exec(ctx, `
			INSERT INTO memberships (ajo_id, user_id, is_head, locked_contribution, payout_due, created_at)
			VALUES ($1, $2, $3, 0, false, $4)
			ON CONFLICT (ajo_id, user_id) DO NOTHING
		`, ajoID, m.userID, m.isHead, joined); err != nil {
			return err
		}
	}
	return nil
}
