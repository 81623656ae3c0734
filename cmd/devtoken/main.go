// Command devtoken prints an access token for a local user, creating the user if needed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/config"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/jwt"
	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
)

func main() {
	phone := flag.String("phone", "", "phone number of the user (required)")
	admin := flag.Bool("admin", false, "create the user with the admin role")
	flag.Parse()

	if *phone == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "devtoken refuses to run in production")
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	u, err := findOrCreate(ctx, user.NewRepository(db), *phone, *admin)
	if err != nil {
		log.Fatal().Err(err).Str("phone", user.MaskPhone(*phone)).Msg("Failed to resolve user")
	}

	if *admin && !u.IsAdmin() {
		log.Warn().Str("user_id", u.ID.String()).Msg("Existing user is not an admin; token carries their current role")
	}

	token, err := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL).
		GenerateAccessToken(u.ID, string(u.Role), !u.IsActive)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("role", string(u.Role)).
		Str("referral_code", u.ReferralCode).
		Msg("Token issued")
	fmt.Println(token)
}

func findOrCreate(ctx context.Context, repo user.Repository, phone string, admin bool) (*user.User, error) {
	u, err := repo.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &user.User{PhoneNumber: phone, Role: user.RoleUser}
	if admin {
		u.Role = user.RoleAdmin
	}
	err = repo.Create(ctx, u)
	if errors.Is(err, user.ErrDuplicatePhoneNumber) {
		// Lost a race with another devtoken run.
		return repo.GetByPhoneNumber(ctx, phone)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
