package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// accessMiddleware enforces access control for the local message API.
// Loopback callers pass without a key when none is configured; everything
// else requires the configured bcrypt-hashed access key. Remote callers
// additionally require allow-remote in the configuration.
func (s *Server) accessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		loopback := clientIP == "127.0.0.1" || clientIP == "::1"

		cfg := s.currentConfig()
		if !loopback && !cfg.AllowRemote {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "remote access disabled"})
			return
		}
		if cfg.AccessKey == "" {
			if loopback {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "access key not configured"})
			return
		}

		// Accept either Authorization: Bearer <key> or X-Access-Key.
		var provided string
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				provided = parts[1]
			} else {
				provided = header
			}
		}
		if provided == "" {
			provided = c.GetHeader("X-Access-Key")
		}
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing access key"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(cfg.AccessKey), []byte(provided)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid access key"})
			return
		}

		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Access-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
