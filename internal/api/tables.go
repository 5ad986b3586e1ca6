package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"veritab/internal/field"
)

// POST /api/tables
//
// Two-phase create: the declaration is validated before anything is
// written, the catalog row lands first, and a failed physical create
// compensates by deleting the row again so the two stores stay in step.
func CreateTableHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Name        string        `json:"name"`
		DisplayName string        `json:"displayName"`
		Description string        `json:"description"`
		Fields      []field.Field `json:"fields"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if body.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Table name and at least one field are required"})
			return
		}
		if errs := field.ValidateDeclaration(body.Fields); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}

		p := currentProject(c)
		ctx := c.Request.Context()

		tbl, err := s.Catalog.Define(ctx, p.ID, body.Name, body.DisplayName, body.Description, body.Fields)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.Provisioner.CreatePhysical(ctx, p.ID, tbl.Name, tbl.Fields); err != nil {
			if _, rerr := s.Catalog.Remove(ctx, p.ID, tbl.Name); rerr != nil {
				log.Printf("orphaned catalog entry %q after failed provisioning: %v", tbl.Name, rerr)
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Table created", "table": tbl})
	}
}

// GET /api/tables/:table
func GetTableHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, err := s.Catalog.Lookup(c.Request.Context(), currentProject(c).ID, c.Param("table"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"table": tbl})
	}
}

// PUT /api/tables/:table
//
// Additive only: new fields grow the definition and the relation; names
// already declared are ignored. Display metadata is patched alongside.
// Columns are added before the catalog is rewritten, so a reader never
// resolves a field whose column does not exist yet.
func UpdateTableHandler(s *Server) gin.HandlerFunc {
	type req struct {
		DisplayName *string       `json:"displayName"`
		Description *string       `json:"description"`
		Fields      []field.Field `json:"fields"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		p := currentProject(c)
		ctx := c.Request.Context()

		tbl, err := s.Catalog.Lookup(ctx, p.ID, c.Param("table"))
		if err != nil {
			respondError(c, err)
			return
		}

		if len(body.Fields) > 0 {
			if errs := field.ValidateDeclaration(body.Fields); len(errs) > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
				return
			}
			added := tbl.NewFields(body.Fields)
			if len(added) > 0 {
				if err := s.Provisioner.AddColumns(ctx, p.ID, tbl.Name, added); err != nil {
					respondError(c, err)
					return
				}
				if tbl, _, err = s.Catalog.Extend(ctx, p.ID, tbl.Name, body.Fields); err != nil {
					respondError(c, err)
					return
				}
			}
		}

		if body.DisplayName != nil || body.Description != nil {
			if tbl, err = s.Catalog.UpdateMetadata(ctx, p.ID, tbl.Name, body.DisplayName, body.Description); err != nil {
				respondError(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "Table updated", "table": tbl})
	}
}

// DELETE /api/tables/:table
func DeleteTableHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentProject(c)
		ctx := c.Request.Context()

		tbl, err := s.Catalog.Remove(ctx, p.ID, c.Param("table"))
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.Provisioner.DropPhysical(ctx, p.ID, tbl.Name); err != nil {
			// catalog entry is gone; the relation has to be dropped by hand
			log.Printf("drop of %q failed after catalog removal: %v", tbl.PhysicalName(), err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Table deleted", "deletedTable": tbl.Name})
	}
}
