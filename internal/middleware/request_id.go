package middleware

import (
	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Request id generation
	"github.com/sirupsen/logrus" // Logging library
)

const (
	HeaderRequestID = "X-Request-ID" // Propagated request id header
	CtxKeyRequestID = "request_id"   // Gin context key for the request id
	ctxKeyLogger    = "logger"       // Gin context key for the request logger
)

// RequestID reuses the caller's X-Request-ID or assigns a new one, and stores
// a logger carrying it on the context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString() // Fresh id for new or oversized ids
		}
		c.Set(CtxKeyRequestID, rid)
		c.Set(ctxKeyLogger, logrus.WithField(CtxKeyRequestID, rid))
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// GetRequestID returns the request id, or "" outside RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(CtxKeyRequestID)
}

// Log returns the request-scoped logger
func Log(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
