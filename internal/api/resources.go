package api

import (
	"net/http" // HTTP status codes

	"elimu_payments/internal/store" // Catalog reads

	"github.com/gin-gonic/gin" // Gin web framework
)

// ListResourcesHandler lists the catalog with optional q, category, level, term and free filters
func ListResourcesHandler(resources *store.ResourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		free, ok := parseBool(c.Query("free"))
		if !ok {
			badRequest(c, "free must be true or false")
			return
		}
		list, err := resources.List(c.Request.Context(), store.ResourceFilter{
			Query:    c.Query("q"),
			Category: c.Query("category"),
			Level:    c.Query("level"),
			Term:     c.Query("term"),
			Free:     free,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resources": list, "total": len(list)})
	}
}

// GetResourceHandler returns one catalog entry
func GetResourceHandler(resources *store.ResourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			badRequest(c, "Invalid resource id")
			return
		}
		res, err := resources.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resource": res})
	}
}
