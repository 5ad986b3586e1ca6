package main

import (
	"context"
	"log"

	"veritab/internal/api"
	"veritab/internal/config"
	"veritab/internal/pg"
	"veritab/internal/seed"
)

func main() {
	cfg := config.LoadWithPath("config.json")
	if cfg.DBURL == "" {
		log.Fatal("no database URL configured (set VERITAB_DB_URL or -db)")
	}

	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if cfg.AutoMigrate {
		if err := pg.Bootstrap(ctx, db); err != nil {
			log.Fatalf("catalog bootstrap failed: %v", err)
		}
		log.Println("catalog relations ready")
	}

	srv := api.NewServer(db)

	if cfg.SeedDir != "" {
		decls, err := seed.LoadDir(cfg.SeedDir)
		if err != nil {
			log.Fatalf("loading seed declarations failed: %v", err)
		}
		if err := seed.Apply(ctx, decls, srv.Projects, srv.Catalog, srv.Provisioner, cfg.SeedName, cfg.SeedAPIKey); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		log.Printf("seeded %d table declarations", len(decls))
	}

	log.Printf("listening on :%s", cfg.Port)
	if err := api.Run(":"+cfg.Port, srv); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
