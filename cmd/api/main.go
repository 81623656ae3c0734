package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/config"
	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/mysterybox"
	"github.com/quizbirr/quizbirr-api/internal/domain/payment"
	"github.com/quizbirr/quizbirr-api/internal/domain/quiz"
	"github.com/quizbirr/quizbirr-api/internal/domain/referral"
	"github.com/quizbirr/quizbirr-api/internal/domain/task"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/middleware"
	"github.com/quizbirr/quizbirr-api/internal/pkg/chapa"
	"github.com/quizbirr/quizbirr-api/internal/pkg/clock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/imaging"
	"github.com/quizbirr/quizbirr-api/internal/pkg/jwt"
	"github.com/quizbirr/quizbirr-api/internal/pkg/lock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
	"github.com/quizbirr/quizbirr-api/internal/pkg/metrics"
	providers "github.com/quizbirr/quizbirr-api/internal/pkg/payment"
	"github.com/quizbirr/quizbirr-api/internal/pkg/realtime"
	pkgresponse "github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/storage"
	"github.com/quizbirr/quizbirr-api/internal/pkg/telebirr"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting QuizBirr API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Redis is optional: without it locks are local no-ops and realtime stays on this instance.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running single-instance")
			rdb = nil
		} else {
			defer database.CloseRedis(rdb)
		}
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	uow := database.NewTxManager(db, cfg.DBTxMaxRetries, database.WithRetryBackoff(cfg.DBTxRetryBackoff))
	loc := cfg.Location()
	clk := clock.RealClock{}

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	taskRepo := task.NewRepository(db)

	// ---------- Core services ----------
	ledgerService := ledger.NewService(ledger.NewRepository(db))
	if err := ledgerService.EnsureSystemAccounts(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to provision system accounts")
	}
	txnService := transaction.NewService(transaction.NewRepository(db))

	// ---------- Realtime ----------
	hub := realtime.NewHub(rdb)
	go hub.Run()
	defer hub.Close()
	events := wallet.NewEvents(db, ledgerService, userRepo, hub)

	// ---------- Payment providers ----------
	factory := providers.NewProviderFactory(
		providers.NewTelebirrProvider(telebirr.NewClient(telebirr.Config{
			BaseURL:       cfg.TelebirrBaseURL,
			AppID:         cfg.TelebirrAppID,
			MerchantCode:  cfg.TelebirrMerchantCode,
			WebhookSecret: cfg.TelebirrWebhookSecret,
			NotifyURL:     cfg.BackendURL + "/webhooks/telebirr",
			CheckoutURL:   cfg.FrontendURL + "/pay",
			Timeout:       cfg.TelebirrTimeout,
		})),
		providers.NewChapaProvider(chapa.NewClient(chapa.Config{
			BaseURL:       cfg.ChapaBaseURL,
			SecretKey:     cfg.ChapaSecretKey,
			WebhookSecret: cfg.ChapaWebhookSecret,
			Timeout:       cfg.ChapaTimeout,
		})),
	)

	receiptStore, err := storage.New(ctx, storage.Config{
		Driver:      cfg.StorageDriver,
		LocalDir:    cfg.StorageLocalDir,
		S3Bucket:    cfg.StorageBucket,
		S3Region:    cfg.StorageRegion,
		S3Endpoint:  cfg.StorageEndpoint,
		S3AccessKey: cfg.StorageAccessKey,
		S3SecretKey: cfg.StorageSecretKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt storage")
	}

	// ---------- Domain services ----------
	walletService := wallet.NewService(db, uow, ledgerService, txnService, userRepo, taskRepo)
	walletService.SetEvents(events)

	paymentService := payment.NewService(db, uow, ledgerService, txnService, userRepo, factory,
		lock.New(rdb, 30*time.Second), payment.URLs{
			WebhookBase: cfg.BackendURL + "/webhooks",
			ReturnURL:   cfg.FrontendURL + "/wallet",
		})
	paymentService.SetReceipts(payment.NewReceipts(receiptStore, imaging.NewProcessor(imaging.DefaultConfig())))
	paymentService.SetEvents(events)

	quizService := quiz.NewService(uow, quiz.NewRepository(db), ledgerService, txnService, userRepo, cfg.QuizWeightMinor)
	quizService.SetEvents(events)

	referralService := referral.NewService(db, uow, referral.NewRepository(db), ledgerService, txnService, userRepo, clk, loc)
	referralService.SetEvents(events)

	taskService := task.NewService(uow, taskRepo, ledgerService, txnService, userRepo, referralService)
	taskService.SetEvents(events)

	mysteryBoxService := mysterybox.NewService(db, uow, mysterybox.NewRepository(db), ledgerService, txnService, userRepo, clk, loc)
	mysteryBoxService.SetEvents(events)

	sweeper := wallet.NewSweeper(uow, txnService, cfg.PendingDepositTTL)
	if cfg.SweeperInProcess {
		if err := sweeper.Start(cfg.SweeperSchedule); err != nil {
			log.Fatal().Err(err).Msg("Failed to start deposit sweeper")
		}
		defer sweeper.Stop()
	}

	// ---------- Router ----------
	authMiddleware := middleware.Auth(jwtService)
	r := newRouter(routes{
		ledger:     ledger.NewHandler(ledgerService),
		wallet:     wallet.NewHandler(walletService),
		payment:    payment.NewHandler(paymentService),
		quiz:       quiz.NewHandler(quizService),
		task:       task.NewHandler(taskService),
		referral:   referral.NewHandler(referralService),
		mysteryBox: mysterybox.NewHandler(mysteryBoxService),
		socket:     realtime.NewHandler(hub, middleware.UserIDFromRequest, cfg.AllowedOrigins),
	}, authMiddleware, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// routes groups the HTTP handlers the router mounts.
type routes struct {
	ledger     *ledger.Handler
	wallet     *wallet.Handler
	payment    *payment.Handler
	quiz       *quiz.Handler
	task       *task.Handler
	referral   *referral.Handler
	mysteryBox *mysterybox.Handler
	socket     http.Handler
}

func newRouter(h routes, authMiddleware func(http.Handler) http.Handler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	r.Handle("/metrics", metrics.Handler())

	// Provider callbacks authenticate by signature, not by token.
	r.Mount("/webhooks", h.payment.WebhookRoutes())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint (before Compress)
		r.With(authMiddleware).Get("/ws", h.socket.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))

			r.Mount("/wallet/deposit", h.payment.Routes(authMiddleware))
			r.Mount("/wallet", h.wallet.Routes(authMiddleware))
			r.Mount("/payments", h.payment.PublicRoutes())
			r.Mount("/quiz", h.quiz.Routes(authMiddleware))
			r.Mount("/tasks", h.task.Routes(authMiddleware))
			r.Mount("/referral", h.referral.Routes(authMiddleware))
			r.Mount("/mystery-box", h.mysteryBox.Routes(authMiddleware))

			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(middleware.RequireAdmin())
				h.ledger.RegisterAdmin(r)
				h.wallet.RegisterAdmin(r)
				h.payment.RegisterAdmin(r)
				h.quiz.RegisterAdmin(r)
				h.task.RegisterAdmin(r)
				h.mysteryBox.RegisterAdmin(r)
			})
		})
	})

	return r
}
