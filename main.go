package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obfin/openfinance/api"
	"github.com/obfin/openfinance/config"
	"github.com/obfin/openfinance/db"
	"github.com/obfin/openfinance/security"
	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Open Finance Platform Core                                  ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Consent-gated, idempotent Open Finance APIs                 ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func main() {
	printBanner()
	fmt.Println()

	printStep("1/6", "Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration loaded")

	printStep("2/6", "Connecting to database...")
	gormDB, err := db.CreateDB(cfg.Database)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect to database: %v", err))
		os.Exit(1)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		printError(fmt.Sprintf("Failed to get database instance: %v", err))
		os.Exit(1)
	}
	defer sqlDB.Close()
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	printStep("3/6", "Initializing engine stores...")
	clock := utils.CreateSystemClock()
	idempotencyStore := stores.CreateIdempotencyStore(cfg.Engine.IdempotencyCapacity)

	var cache stores.CacheBackend
	if cfg.Redis.Enabled {
		redisCache, err := stores.CreateRedisCache(cfg.Redis)
		if err != nil {
			printWarning(fmt.Sprintf("Failed to connect to Redis: %v (falling back to in-memory cache)", err))
			cache = stores.CreateResultCache(cfg.Engine.CacheCapacity, clock.Now)
		} else {
			defer redisCache.Close()
			cache = redisCache
			printSuccess(fmt.Sprintf("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port))
		}
	} else {
		cache = stores.CreateResultCache(cfg.Engine.CacheCapacity, clock.Now)
	}

	consentStore := stores.CreateConsentStore()
	locks := utils.CreateKeyedMutex()
	printSuccess("Engine stores initialized")

	printStep("4/6", "Initializing security components...")
	jwtManager := security.CreateJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	rateLimiter := security.CreateTieredRateLimiter(map[string]security.RateLimitConfig{
		"standard": {RequestsPerSecond: 50, Burst: 100},
		"premium":  {RequestsPerSecond: 200, Burst: 400},
	}, security.RateLimitConfig{RequestsPerSecond: 10, Burst: 20})
	defer rateLimiter.Stop()
	printSuccess("Security components initialized")

	printStep("5/6", "Initializing services...")
	gate := services.CreateConsentGate(consentStore)

	bulkService := services.CreateBulkService(
		gate,
		stores.CreateBulkFileStore(gormDB),
		idempotencyStore,
		cache,
		clock,
		services.BulkSettings{
			IdempotencyTTL:        cfg.Engine.IdempotencyTTL,
			CacheTTL:              cfg.Engine.CacheTTL,
			StatusPollsToComplete: cfg.Engine.StatusPollsToComplete,
			MaxFileSizeBytes:      cfg.Engine.MaxBulkFileBytes,
		},
	)
	vrpService := services.CreateVrpService(
		stores.CreateVrpStore(gormDB),
		services.AllowAllScreening{},
		idempotencyStore,
		cache,
		locks,
		clock,
		services.VrpSettings{
			IdempotencyTTL: cfg.Engine.IdempotencyTTL,
			CacheTTL:       cfg.Engine.CacheTTL,
		},
	)
	fxService := services.CreateFxService(
		gate,
		stores.CreateFxStore(gormDB),
		services.FixedRateTable(cfg.Engine.FxRates),
		idempotencyStore,
		cache,
		clock,
		services.FxSettings{
			IdempotencyTTL: cfg.Engine.IdempotencyTTL,
			CacheTTL:       cfg.Engine.CacheTTL,
			QuoteValidity:  cfg.Engine.QuoteValidity,
		},
	)
	insuranceService := services.CreateInsuranceService(
		gate,
		stores.CreateInsuranceStore(gormDB),
		idempotencyStore,
		clock,
		services.InsuranceSettings{
			IdempotencyTTL: cfg.Engine.IdempotencyTTL,
			QuoteValidity:  cfg.Engine.QuoteValidity,
			Currency:       cfg.Engine.InsuranceCurrency,
		},
	)
	accountService := services.CreateAccountService(
		gate,
		stores.CreateAccountStore(gormDB),
		cache,
		clock,
		services.AccountSettings{CacheTTL: cfg.Engine.CacheTTL},
	)
	printSuccess("Services initialized")

	printStep("6/6", "Setting up HTTP server...")
	router := api.CreateRouter(api.Handlers{
		Bulk:      api.CreateBulkHandler(bulkService),
		Vrp:       api.CreateVrpHandler(vrpService),
		Fx:        api.CreateFxHandler(fxService),
		Insurance: api.CreateInsuranceHandler(insuranceService),
		Account:   api.CreateAccountHandler(accountService),
	}, jwtManager, rateLimiter)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	printSuccess("HTTP server configured")

	fmt.Println()
	fmt.Printf("%s%sOpen Finance core is ready%s\n", colorGreen, colorBold, colorReset)
	fmt.Printf("  Environment: %s\n", cfg.Environment)
	fmt.Printf("  Listening:   http://localhost:%s/v1\n", cfg.Server.Port)
	fmt.Println()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(fmt.Sprintf("Server failed to start: %v", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	printWarning("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		printError(fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}
	printSuccess("Server stopped")
}
