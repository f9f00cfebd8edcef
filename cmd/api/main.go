package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/background"
	"github.com/catkeep/authcore/internal/cache"
	"github.com/catkeep/authcore/internal/config"
	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/handlers"
	middlewareCustom "github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/repositories"
	"github.com/catkeep/authcore/internal/routes"
	"github.com/catkeep/authcore/internal/services"
	pkgauth "github.com/catkeep/authcore/pkg/auth"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if !cfg.Auth.SessionSecretConfigured {
		logger.Warn("SESSION_SECRET not set, using development fallback; session cookies are forgeable")
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, cfg.Database.DSN()); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	mfaSecretRepo := repositories.NewMFASecretRepository(db)
	trustedDeviceRepo := repositories.NewTrustedDeviceRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	userCache := cache.NewUserCache(5 * time.Minute)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(loginAttemptRepo, userCache, logger, 1*time.Hour)

	// Initialize token manager for the signed session-state cookie
	tokenManager := auth.NewStateTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)

	// MFA secret storage codec; an empty key selects plaintext and logs it
	vault, err := auth.NewSecretCodec(cfg.Auth.MFAEncryptionKey, logger)
	if err != nil {
		logger.Error("failed to initialize MFA secret codec", slog.Any("error", err))
		os.Exit(1)
	}
	totpCodec := auth.NewTOTPCodec(cfg.Auth.Issuer)

	// Initialize services
	auditService := services.NewAuditService(auditLogRepo, logger)
	lockoutPolicy := services.LockoutPolicy{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		Window:            cfg.Auth.LockoutWindow,
		Duration:          cfg.Auth.LockoutDuration,
	}
	credentialService := services.NewCredentialService(userRepo, loginAttemptRepo, mfaSecretRepo, lockoutPolicy, logger)
	mfaService := services.NewMFAService(mfaSecretRepo, totpCodec, vault, logger)
	deviceService := services.NewTrustedDeviceService(trustedDeviceRepo, cfg.Auth.TrustDuration, logger)
	sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionTTL, logger)
	authService := services.NewAuthService(credentialService, mfaService, deviceService, sessionService, userRepo, auditService, logger)
	userService := services.NewUserService(userRepo, userCache, sessionService, auditService, logger)

	// Initialize handlers
	cookieConfig := auth.CookieConfig{Secure: cfg.Server.Env == "production"}
	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, userService, tokenManager, cookieConfig, cfg.Auth.SessionTTL, ipConfig)
	mfaHandler := handlers.NewMFAHandler(authService, tokenManager, cookieConfig, cfg.Auth.SessionTTL, cfg.Auth.TrustDuration, ipConfig)
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	userHandler := handlers.NewUserHandler(userService)

	// Bootstrap first superadmin if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSuperadmin(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure superadmin", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.SessionState(tokenManager, sessionService, logger))
	router.Use(middlewareCustom.AccessGate())

	// Register routes
	routes.RegisterRoutes(router, authHandler, mfaHandler, deviceHandler, userHandler)

	// Health check with database
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureSuperadmin creates the first superadmin if ADMIN_USERNAME, ADMIN_EMAIL
// and ADMIN_PASSWORD are set. It goes through the repository directly since no
// actor exists yet to authorize the creation.
func ensureSuperadmin(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME, ADMIN_EMAIL or ADMIN_PASSWORD set, skipping superadmin creation")
		return nil
	}

	// Check if the account already exists
	_, err := userRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("superadmin already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if superadmin exists: %w", err)
	}

	if msg := pkgauth.ValidateStrength(adminPassword); msg != "" {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %s", msg)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash superadmin password: %w", err)
	}

	now := time.Now()
	expires := now.Add(pkgauth.PasswordExpiryDays * 24 * time.Hour)
	admin := &models.User{
		Username:           adminUsername,
		Email:              adminEmail,
		PasswordHash:       hashedPassword,
		IsActive:           true,
		Role:               models.RoleSuperadmin,
		LastPasswordChange: &now,
		PasswordExpiresAt:  &expires,
	}

	_, err = userRepo.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to create superadmin: %w", err)
	}

	logger.Info("superadmin created successfully")
	return nil
}
