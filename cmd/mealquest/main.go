package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/mealquest/internal/database"
	"github.com/dukerupert/mealquest/internal/logging"
	"github.com/dukerupert/mealquest/internal/push"
	"github.com/dukerupert/mealquest/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("MEALQUEST_LOG_LEVEL"))

	port := os.Getenv("MEALQUEST_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("MEALQUEST_DB_PATH")
	if dbPath == "" {
		dbPath = "mealquest.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	secret := os.Getenv("MEALQUEST_SESSION_SECRET")
	if secret == "" {
		// Tokens signed with an ephemeral secret die with the process,
		// which only voids in-flight play sessions. Fine for dev.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("failed to generate session secret: %v", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("MEALQUEST_SESSION_SECRET not set, using ephemeral secret")
	}

	cfg := server.Config{
		SessionSecret: secret,
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("MEALQUEST_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("MEALQUEST_VAPID_PRIVATE_KEY"),
		},
	}

	srv := server.New(db, cfg, logger)

	// Normalize accounts that went stale while the process was down.
	if n, err := srv.PointsService().ResetAllDailyLimits(); err != nil {
		logger.Error("startup daily limit reset failed", "error", err)
	} else if n > 0 {
		logger.Info("startup daily limit reset", "accounts", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Weekly rollover timer and play-session sweeper.
	srv.Scheduler().Start(ctx)
	go srv.SessionManager().Run(ctx)

	// Hourly cleanup of expired auth sessions and rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions deleted", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("MealQuest running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	cancel()
	srv.Scheduler().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
