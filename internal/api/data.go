package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"veritab/internal/catalog"
	"veritab/internal/query"
)

func (s *Server) resolveTable(c *gin.Context) (*catalog.Table, bool) {
	tbl, err := s.Catalog.Lookup(c.Request.Context(), currentProject(c).ID, c.Param("table"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return tbl, true
}

// POST /api/data/:table
func InsertRecordHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}

		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		rec, err := s.Engine.Insert(c.Request.Context(), tbl, payload)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Record created", "data": rec})
	}
}

// GET /api/data/:table?page=&limit=&sort=&order=&search=
func ListRecordsHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}

		page, err := s.Engine.List(c.Request.Context(), tbl, parsePageRequest(c))
		if err != nil {
			respondError(c, err)
			return
		}
		if page.Rows == nil {
			page.Rows = []query.Record{}
		}
		c.JSON(http.StatusOK, page)
	}
}

// GET /api/data/:table/:id
func GetRecordHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		rec, err := s.Engine.GetByID(c.Request.Context(), tbl, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rec})
	}
}

// PUT /api/data/:table/:id applies a partial update of exactly the sent fields.
func UpdateRecordHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		rec, err := s.Engine.Update(c.Request.Context(), tbl, id, payload)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Record updated", "data": rec})
	}
}

// DELETE /api/data/:table/:id
func DeleteRecordHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		rec, err := s.Engine.Delete(c.Request.Context(), tbl, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Record deleted", "deletedData": rec})
	}
}

// POST /api/data/:table/bulk inserts with per-row isolation, 201 with a mixed result.
func BulkInsertHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Data []map[string]any `json:"data"`
	}
	return func(c *gin.Context) {
		tbl, ok := s.resolveTable(c)
		if !ok {
			return
		}

		var body req
		if err := c.ShouldBindJSON(&body); err != nil || len(body.Data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data must be a non-empty array"})
			return
		}

		res, err := s.Engine.ImportRows(c.Request.Context(), tbl, body.Data)
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Inserted == nil {
			res.Inserted = []query.Record{}
		}
		c.JSON(http.StatusCreated, res)
	}
}

func parsePageRequest(c *gin.Context) query.PageRequest {
	req := query.PageRequest{
		Page:       1,
		Limit:      50,
		SortColumn: c.Query("sort"),
		SearchTerm: c.Query("search"),
	}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n >= 1 {
		req.Page = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n >= 1 && n <= 1000 {
		req.Limit = n
	}
	if strings.EqualFold(c.Query("order"), "asc") {
		req.SortOrder = query.SortAsc
	} else {
		req.SortOrder = query.SortDesc
	}
	return req
}
