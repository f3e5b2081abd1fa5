package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/internal/repository"
	"github.com/rcffuta/elib-api/pkg/config"
	"github.com/rcffuta/elib-api/pkg/database"
)

func main() {
	var (
		email      string
		password   string
		firstName  string
		lastName   string
		role       string
		department string
		level      int
	)

	flag.StringVar(&email, "email", "", "Account email (required)")
	flag.StringVar(&password, "password", "", "Account password, at least 8 characters (required)")
	flag.StringVar(&firstName, "first-name", "Admin", "First name")
	flag.StringVar(&lastName, "last-name", "", "Last name")
	flag.StringVar(&role, "role", string(models.RoleAdmin), "Role: ADMIN or USER")
	flag.StringVar(&department, "department", "", "Department for student accounts")
	flag.IntVar(&level, "level", 0, "Current level for student accounts")
	flag.Parse()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		log.Fatal("both -email and a -password of at least 8 characters are required")
	}
	userRole := models.UserRole(strings.ToUpper(role))
	if userRole != models.RoleAdmin && userRole != models.RoleUser {
		log.Fatalf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Department:   strings.TrimSpace(department),
		Role:         userRole,
		Active:       true,
	}
	if level > 0 {
		user.CurrentLevel = &level
	}

	if err := repository.NewUserRepository(db).Upsert(ctx, user); err != nil {
		log.Fatalf("failed to save user: %v", err)
	}
	log.Printf("user %s saved with role %s", email, userRole)
}
