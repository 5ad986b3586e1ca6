package api

import (
	"database/sql"

	"veritab/internal/catalog"
	"veritab/internal/pg"
	"veritab/internal/project"
	"veritab/internal/query"
)

// Server bundles the core components the handlers dispatch to. Every
// dependency is injected; nothing here reaches for a global.
type Server struct {
	DB          *sql.DB
	Projects    *project.Store
	Catalog     *catalog.Catalog
	Provisioner *pg.Provisioner
	Engine      *query.Engine
}

func NewServer(db *sql.DB) *Server {
	return &Server{
		DB:          db,
		Projects:    project.NewStore(db),
		Catalog:     catalog.New(db),
		Provisioner: pg.NewProvisioner(db),
		Engine:      query.New(db),
	}
}
