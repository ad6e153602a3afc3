package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ginLogger routes gin request logs through logrus. API traffic is
// local unix-socket chatter, so successful requests log at debug.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// handlers may rewrite the path, keep the original
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		bytes := c.Writer.Size()
		if bytes < 0 {
			bytes = 0
		}

		entry := logger.WithFields(logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    path,
			"bytes":   bytes,
			"latency": latency.String(),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		msg := fmt.Sprintf("%s %s %d in %s", c.Request.Method, path, status, latency.Round(time.Millisecond))
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}
