package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"veritab/internal/catalog"
)

// POST /api/projects is the only unauthenticated write: it mints the key.
func CreateProjectHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if body.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
			return
		}

		p, err := s.Projects.Create(c.Request.Context(), body.Name, body.Description)
		if err != nil {
			respondError(c, err)
			return
		}
		// the one response that carries the API key
		c.JSON(http.StatusCreated, gin.H{"message": "Project created", "project": p})
	}
}

// GET /api/projects/info
func ProjectInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := *currentProject(c)
		p.APIKey = ""
		c.JSON(http.StatusOK, gin.H{"project": p})
	}
}

// PUT /api/projects
func UpdateProjectHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		p, err := s.Projects.Update(c.Request.Context(), currentProject(c).ID, body.Name, body.Description)
		if err != nil {
			respondError(c, err)
			return
		}
		p.APIKey = ""
		c.JSON(http.StatusOK, gin.H{"message": "Project updated", "project": p})
	}
}

// GET /api/projects/tables
func ProjectTablesHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := s.Catalog.ListForProject(c.Request.Context(), currentProject(c).ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if tables == nil {
			tables = []*catalog.Table{}
		}
		c.JSON(http.StatusOK, gin.H{"tables": tables})
	}
}

// GET /api/projects/stats: table count plus total rows across physical
// relations; a relation that cannot be counted is skipped, not fatal.
func ProjectStatsHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentProject(c)
		tables, err := s.Catalog.ListForProject(c.Request.Context(), p.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		totalRecords := 0
		for _, tbl := range tables {
			n, err := s.Engine.Count(c.Request.Context(), tbl)
			if err != nil {
				continue
			}
			totalRecords += n
		}

		c.JSON(http.StatusOK, gin.H{"stats": gin.H{
			"tableCount":   len(tables),
			"totalRecords": totalRecords,
			"projectId":    p.ID,
			"projectName":  p.Name,
		}})
	}
}
