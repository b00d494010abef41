// cmd/tools/seed-admin/main.go
//
// Seeds an admin account so a fresh deployment has someone who can
// approve operators. Idempotent by email: a second run against the same
// database fails on the unique constraint and reports it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"seva-portal/internal/common/config"
	"seva-portal/internal/common/database"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

func main() {
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password (min 8 characters)")
	fullName := flag.String("name", "Portal Admin", "Admin display name")
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || len(*password) < 8 {
		fmt.Println("Error: -email and a -password of at least 8 characters are required.")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: config load failed: %v\n", err)
		os.Exit(1)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error: postgres connection failed: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pg.Ping(ctx); err != nil {
		fmt.Printf("Error: postgres unreachable: %v\n", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.Auth.BcryptCost)
	if err != nil {
		fmt.Printf("Error: password hashing failed: %v\n", err)
		os.Exit(1)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		FullName:     *fullName,
		Email:        *email,
		Role:         models.RoleAdmin,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	users := store.NewUserStore(pg.DB)
	if err := users.Insert(ctx, user); err != nil {
		if store.IsUniqueViolation(err) {
			fmt.Printf("Error: an account with email %s already exists.\n", *email)
		} else {
			fmt.Printf("Error: insert failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Admin account created: %s (%s)\n", *email, user.ID)
}
