package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfair/internal/api/handlers"
	"github.com/orrn/printfair/internal/api/middleware"
	"github.com/orrn/printfair/internal/archive"
	"github.com/orrn/printfair/internal/config"
	"github.com/orrn/printfair/internal/core"
	"github.com/orrn/printfair/internal/db"
	"github.com/orrn/printfair/internal/files"
	"github.com/orrn/printfair/internal/webhook"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.UploadsDir, 0755); err != nil {
		log.Fatalf("failed to create uploads directory: %v", err)
	}

	sqlDB, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer sqlDB.Close()

	store := db.NewStore(sqlDB)

	sender := webhook.NewSender(store.Webhooks, webhook.Config{
		RetryCount:  cfg.Webhooks.RetryCount,
		RetryDelay:  cfg.Webhooks.RetryDelay,
		Timeout:     cfg.Webhooks.Timeout,
		WorkerCount: cfg.Webhooks.WorkerCount,
		QueueSize:   cfg.Webhooks.QueueSize,
	})
	sender.Start()
	defer sender.Stop()

	recalc := core.NewRecalculator(store.Jobs)
	cleaner := files.NewLocalCleaner(cfg.Storage.UploadsDir)
	lifecycle := core.NewLifecycle(store.Jobs, store.Users, recalc, sender, cleaner, cfg.Receipts.Prefix)

	archiver := archive.NewArchiver(store, cfg.Database.ArchiveDays)
	archiver.Start()
	defer archiver.Stop()

	auth, err := middleware.NewAuthMiddleware(store.Settings)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}

	router := gin.Default()

	router.POST("/api/auth/setup", auth.SetupHandler)
	router.POST("/api/auth/login", auth.LoginHandler)
	router.POST("/api/auth/logout", auth.LogoutHandler)
	router.GET("/api/auth/status", auth.StatusHandler)
	router.POST("/api/auth/password", auth.RequireAuth(), auth.ChangePasswordHandler)

	api := router.Group("/api")
	admin := router.Group("/api/admin", auth.RequireAuth())

	handlers.NewJobHandler(store, lifecycle).RegisterRoutes(api, admin)
	handlers.NewUserHandler(store).RegisterRoutes(api, admin)
	handlers.NewWebhookHandler(store).RegisterRoutes(admin)
	handlers.NewArchiveHandler(store, archiver).RegisterRoutes(admin)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
