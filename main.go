package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"orderpad/internal/catalog"
	"orderpad/internal/config"
	"orderpad/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.Bool("seed", false, "Seed a demo catalog when the database is empty")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed: ", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("catalog open failed: ", err)
	}
	defer store.Close()

	if *seed {
		if err := store.SeedDemo(context.Background()); err != nil {
			log.Fatal("seed failed: ", err)
		}
	}

	app := server.New(cfg, store, nil)

	log.Printf("orderpad server starting on %s", cfg.Listen)
	log.Fatal(http.ListenAndServe(cfg.Listen, app.Routes()))
}
