package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/tmasson/registre/internal/config"
	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/export"
	"github.com/tmasson/registre/internal/importer"
	"github.com/tmasson/registre/internal/middleware"
	"github.com/tmasson/registre/internal/records"
	"github.com/tmasson/registre/internal/repository"
	"github.com/tmasson/registre/migrations"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(cfg.Database, migrations.FS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Pool-bound repositories for reads; writes go through the services,
	// which bind their own transaction-scoped stores.
	categoryRepo := repository.NewCategoryRepository(conn.Pool)
	recordRepo := repository.NewRecordRepository(conn.Pool)
	auditRepo := repository.NewAuditRepository(conn.Pool)
	importLogRepo := repository.NewImportLogRepository(conn.Pool)
	userRepo := repository.NewUserRepository(conn.Pool)

	recordService := records.NewService(conn, records.NewStores)
	importService := importer.NewService(categoryRepo, importLogRepo, recordService, cfg.ImportBatchSize)
	exportService := export.NewService(recordRepo, categoryRepo, userRepo)

	catalog := records.NewCatalogHandler(categoryRepo, userRepo)

	mux := http.NewServeMux()
	recordsHandler := records.NewHTTPHandler(recordService, recordRepo, auditRepo, categoryRepo)
	mux.Handle("/api/records", recordsHandler)
	mux.Handle("/api/records/", recordsHandler)
	importHandler := importer.NewHTTPHandler(importService, importLogRepo)
	mux.Handle("/api/import", importHandler)
	mux.Handle("/api/import/", importHandler)
	mux.Handle("/api/export", export.NewHTTPHandler(exportService))
	mux.Handle("/api/categories", catalog.Categories())
	mux.Handle("/api/categories/", catalog.Categories())
	mux.Handle("/api/users", catalog.Users())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}
