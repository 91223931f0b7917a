package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"gapscan/pkg/api"
	"gapscan/pkg/config"
	"gapscan/pkg/storage"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(os.Getenv("GAPSCAN_CONFIG"))
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	dbPath := os.Getenv("GAPSCAN_DB_PATH")
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	log.Info("using database", zap.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatal("open sqlite db", zap.Error(err))
	}
	defer db.Close()

	// Pragmas for better performance
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	if err := storage.EnsureTables(context.Background(), db); err != nil {
		log.Fatal("ensure tables", zap.Error(err))
	}

	r := mux.NewRouter()
	api.RegisterRoutes(r, db, log)

	addr := os.Getenv("GAPSCAN_LISTEN_ADDR")
	if addr == "" {
		addr = cfg.ListenAddr
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("gapscan server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
