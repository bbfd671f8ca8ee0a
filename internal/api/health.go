package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler answers 200 when every check passes and 503 otherwise
func HealthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				logrus.WithFields(logrus.Fields{"check": name, "error": err.Error()}).Warn("Health check failed")
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}
		if !healthy {
			status["status"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ok"
		c.JSON(http.StatusOK, status)
	}
}
