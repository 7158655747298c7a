package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/wealthbridge/backend/docs"
	"github.com/wealthbridge/backend/internal/database"
	"github.com/wealthbridge/backend/internal/handlers"
	"github.com/wealthbridge/backend/internal/jobs"
	mW "github.com/wealthbridge/backend/internal/middleware"
	"github.com/wealthbridge/backend/internal/services"
)

// @title WealthBridge Backend API
// @version 1.0
// @description API for the investment ledger and rewards platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("referral.purchase_rate_pct", "REFERRAL_PURCHASE_RATE_PCT")
	viper.BindEnv("referral.earning_rate_pct", "REFERRAL_EARNING_RATE_PCT")
	viper.BindEnv("payout.currency", "PAYOUT_CURRENCY")
	viper.BindEnv("payout.bicfi", "PAYOUT_BICFI")
	viper.BindEnv("jobs.accrual_schedule", "ACCRUAL_SCHEDULE")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "WealthBridge Backend API"
	docs.SwaggerInfo.Description = "API for the investment ledger and rewards platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	referralService := services.NewReferralService(db, ledgerService)
	accountService := services.NewAccountService(db, ledgerService, referralService)
	rechargeService := services.NewRechargeService(db, ledgerService)
	payoutService := services.NewPayoutService(redisClient)
	withdrawalService := services.NewWithdrawalService(db, ledgerService, payoutService)
	productService := services.NewProductService(db, ledgerService, referralService)
	luckyDrawService := services.NewLuckyDrawService(db, ledgerService)
	kycService := services.NewKycService(db)

	luckyDrawHandler := handlers.NewLuckyDrawHandler(luckyDrawService)
	adminHandler := handlers.NewAdminHandler(rechargeService, withdrawalService, kycService, luckyDrawService)

	// Daily accrual scheduler
	scheduler := jobs.NewScheduler(productService, redisClient)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for product images and uploaded screenshots
	r.Handle("/static/uploads/*", http.StripPrefix("/static/uploads/",
		mW.StaticFileServer("./static/uploads")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// All endpoints require an authenticated identity; account creation
		// binds the ledger account to the token subject.
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts/register", accountService.Register)
			r.Get("/accounts/me", accountService.GetMyAccount)
			r.Get("/transactions", accountService.GetMyTransactions)

			// Recharge
			r.Post("/recharges", rechargeService.CreateRecharge)
			r.Get("/recharges", rechargeService.ListMyRecharges)
			r.Get("/recharges/{requestId}/qr", rechargeService.PaymentQR)

			// Withdrawal
			r.Post("/withdrawals", withdrawalService.CreateWithdrawal)
			r.Get("/withdrawals", withdrawalService.ListMyWithdrawals)

			// Products and earnings
			r.Get("/products", productService.ListCatalog)
			r.Post("/products/{productId}/purchase", productService.PurchaseProduct)
			r.Get("/user-products", productService.ListMyProducts)
			r.Get("/earnings", productService.ListMyEarnings)

			// Referrals
			r.Get("/referrals", referralService.ListMyReferrals)
			r.Get("/referrals/stats", referralService.GetMyReferralStats)

			// Lucky draw
			r.Get("/lucky-draw/rewards", luckyDrawHandler.ListRewards)
			r.Get("/lucky-draw/can-spin", luckyDrawHandler.CanSpin)
			r.Post("/lucky-draw/spin", luckyDrawHandler.Spin)
			r.Get("/lucky-draw/history", luckyDrawHandler.History)

			// KYC
			r.Post("/kyc", kycService.SubmitKyc)
			r.Get("/kyc", kycService.GetMyKyc)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Get("/admin/accounts", accountService.AdminListAccounts)

				r.Get("/admin/recharges", adminHandler.ListRecharges)
				r.Post("/admin/recharges/{requestId}/approve", adminHandler.ApproveRecharge)
				r.Post("/admin/recharges/{requestId}/reject", adminHandler.RejectRecharge)

				r.Get("/admin/withdrawals", adminHandler.ListWithdrawals)
				r.Post("/admin/withdrawals/{requestId}/approve", adminHandler.ApproveWithdrawal)
				r.Post("/admin/withdrawals/{requestId}/reject", adminHandler.RejectWithdrawal)

				r.Get("/admin/kyc", adminHandler.ListKycSubmissions)
				r.Post("/admin/kyc/{submissionId}/approve", adminHandler.ApproveKyc)
				r.Post("/admin/kyc/{submissionId}/reject", adminHandler.RejectKyc)

				r.Get("/admin/products", productService.AdminListProducts)
				r.Post("/admin/products", productService.AdminCreateProduct)
				r.Put("/admin/products/{productId}", productService.AdminUpdateProduct)

				r.Get("/admin/lucky-draw/rewards", adminHandler.ListAllRewards)
				r.Post("/admin/lucky-draw/rewards", adminHandler.CreateReward)
				r.Put("/admin/lucky-draw/rewards/{rewardId}", adminHandler.UpdateReward)
				r.Delete("/admin/lucky-draw/rewards/{rewardId}", adminHandler.DeleteReward)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
