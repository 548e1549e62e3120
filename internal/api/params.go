package api

import (
	"strconv" // String conversion
	"time"    // Date filters

	"github.com/gin-gonic/gin" // Gin web framework
)

const (
	defaultPageSize = 20  // Default page size
	maxPageSize     = 100 // Largest page a client may ask for
)

// pagination reads page and page_size, falling back to defaults for bad values
func pagination(c *gin.Context) (int, int) {
	page, pageSize := 1, defaultPageSize
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= maxPageSize {
		pageSize = v
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, strconv.IntSize)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
// A plain date used as an upper bound covers the whole day.
func parseTimeParam(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// parseBool accepts true/1/yes and false/0/no
func parseBool(s string) (*bool, bool) {
	switch s {
	case "":
		return nil, true
	case "true", "1", "yes":
		v := true
		return &v, true
	case "false", "0", "no":
		v := false
		return &v, true
	}
	return nil, false
}
