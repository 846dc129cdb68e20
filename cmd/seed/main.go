// Seed fills an empty database with a manager account, the dining room
// layout and a starter menu so a fresh install is usable immediately.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phovang-pos/api/internal/config"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

type seedItem struct {
	name      string
	price     string
	category  string
	groupCode string
	groupName string
}

var menu = []seedItem{
	{"Pho bo tai", "55000", "Pho", "bep", "Bep"},
	{"Pho bo chin", "55000", "Pho", "bep", "Bep"},
	{"Pho ga", "50000", "Pho", "bep", "Bep"},
	{"Bun cha", "60000", "Bun", "bep", "Bep"},
	{"Nem ran (6 cai)", "45000", "Mon them", "bep", "Bep"},
	{"Com rang dua bo", "65000", "Com", "bep", "Bep"},
	{"Tra da", "5000", "Do uong", "bar", "Bar"},
	{"Tra chanh", "15000", "Do uong", "bar", "Bar"},
	{"Ca phe sua da", "25000", "Do uong", "bar", "Bar"},
	{"Nuoc cam", "30000", "Do uong", "bar", "Bar"},
	{"Bia Ha Noi", "20000", "Do uong", "bar", "Bar"},
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	queries := database.New(pool)

	hashed, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	if _, err := queries.CreateUser(ctx, database.CreateUserParams{
		Email:          "manager@phovang.local",
		HashedPassword: string(hashed),
		FullName:       "Quan ly",
		Role:           enum.UserRoleManager,
	}); err != nil {
		log.Printf("create manager (may already exist): %v", err)
	}

	for _, it := range menu {
		var price pgtype.Numeric
		if err := price.Scan(it.price); err != nil {
			log.Fatalf("price %q: %v", it.price, err)
		}
		if _, err := queries.CreateMenuItem(ctx, database.CreateMenuItemParams{
			Name:      it.name,
			Price:     price,
			Category:  it.category,
			GroupCode: pgtype.Text{String: it.groupCode, Valid: true},
			GroupName: pgtype.Text{String: it.groupName, Valid: true},
			Available: true,
		}); err != nil {
			log.Printf("menu item %q (may already exist): %v", it.name, err)
		}
	}

	// Two rows of tables: A1-A6 inside, B1-B4 on the terrace.
	for row, count := range map[string]int{"A": 6, "B": 4} {
		for i := 1; i <= count; i++ {
			name := fmt.Sprintf("%s%d", row, i)
			if _, err := queries.CreateTable(ctx, database.CreateTableParams{
				Name:     name,
				RowLabel: pgtype.Text{String: row, Valid: true},
			}); err != nil {
				log.Printf("table %q (may already exist): %v", name, err)
			}
		}
	}

	log.Println("seed complete")
}
