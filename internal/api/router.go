package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "veritab API",
			"version":   "1.0.0",
			"status":    "running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/health", HealthHandler(s))

	auth := RequireAPIKey(s.Projects)
	apiGroup := r.Group("/api")
	{
		projects := apiGroup.Group("/projects")
		projects.POST("", CreateProjectHandler(s))
		projects.GET("/info", auth, ProjectInfoHandler())
		projects.PUT("", auth, UpdateProjectHandler(s))
		projects.GET("/tables", auth, ProjectTablesHandler(s))
		projects.GET("/stats", auth, ProjectStatsHandler(s))

		tables := apiGroup.Group("/tables", auth)
		tables.POST("", CreateTableHandler(s))
		tables.GET("/:table", GetTableHandler(s))
		tables.PUT("/:table", UpdateTableHandler(s))
		tables.DELETE("/:table", DeleteTableHandler(s))

		data := apiGroup.Group("/data", auth)
		// static segment before the :id routes
		data.POST("/:table/bulk", BulkInsertHandler(s))
		data.POST("/:table", InsertRecordHandler(s))
		data.GET("/:table", ListRecordsHandler(s))
		data.GET("/:table/:id", GetRecordHandler(s))
		data.PUT("/:table/:id", UpdateRecordHandler(s))
		data.DELETE("/:table/:id", DeleteRecordHandler(s))
	}

	return r
}

func HealthHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "connected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func Run(addr string, s *Server) error {
	return NewRouter(s).Run(addr)
}
