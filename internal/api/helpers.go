package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"veritab/internal/catalog"
	"veritab/internal/field"
	"veritab/internal/pg"
	"veritab/internal/project"
	"veritab/internal/query"
)

// respondError maps core errors onto HTTP statuses. Validation failures
// keep their per-field detail; storage faults collapse to a generic 500.
func respondError(c *gin.Context, err error) {
	var verr *field.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
		return
	}

	switch {
	case errors.Is(err, catalog.ErrTableNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Table not found"})
	case errors.Is(err, catalog.ErrDuplicateTable):
		c.JSON(http.StatusConflict, gin.H{"error": "Table already exists"})
	case errors.Is(err, query.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, query.ErrNoFieldsToUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
	case errors.Is(err, project.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	default:
		var perr *pg.ProvisionError
		if errors.As(err, &perr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Provisioning failed", "message": perr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error", "message": err.Error()})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return 0, false
	}
	return id, true
}
