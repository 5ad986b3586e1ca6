package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"veritab/internal/project"
)

const ctxProject = "project"

// RequireAPIKey resolves the x-api-key header to an active project and
// stashes it in the request context. The core never sees credentials,
// only the resolved tenant.
func RequireAPIKey(projects *project.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("x-api-key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "send the key in the x-api-key header",
			})
			return
		}

		p, err := projects.GetByAPIKey(c.Request.Context(), apiKey)
		if errors.Is(err, project.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
			return
		}

		c.Set(ctxProject, p)
		c.Next()
	}
}

func currentProject(c *gin.Context) *project.Project {
	return c.MustGet(ctxProject).(*project.Project)
}
