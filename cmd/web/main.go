package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"prepquiz/internal/app"
	"prepquiz/internal/db"
)

func main() {
	cfg := app.LoadConfig()

	dbConn, err := db.Open(context.Background(), cfg.DBOptions())
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(context.Background(), dbConn); err != nil {
			log.Printf("migrate error: %v", err)
			os.Exit(1)
		}
	}

	srv := app.NewServer(cfg, dbConn)
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			srv.AuthLimiter.Sweep()
		}
	}()

	log.Printf("prepquiz web listening on %s (db=%s env=%s)", cfg.HTTPAddr, dbConn.Dialect, cfg.AppEnv)
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Handler); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
