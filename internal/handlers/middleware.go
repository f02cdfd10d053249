package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quire/internal/constants"
	"quire/internal/models"
	"quire/internal/services"
)

// SiteMiddleware resolves the tenant from the X-Quire-Site header (id or
// host) or, failing that, the request Host.
func SiteMiddleware(siteService *services.SiteService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(constants.HeaderSite)
		if key == "" {
			key = c.Request.Host
		}
		site, err := siteService.ResolveSite(c.Request.Context(), key)
		if err != nil {
			log.Error("site resolution failed", zap.String("key", key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if site == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown site"})
			return
		}
		c.Set(constants.ContextKeySite, site)
		c.Set(constants.ContextKeySiteID, site.ID)
		c.Next()
	}
}

// APIAuthMiddleware checks for a valid Bearer token against the site's
// api_token setting.  A site without a token has no admin access.
func APIAuthMiddleware(siteService *services.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := siteService.GetSetting(c.Request.Context(), siteID(c), constants.SettingAPIToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be Bearer {token}"})
			return
		}

		if token == "" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(constants.ContextKeyIsAdmin, true)
		if author := c.GetHeader(constants.HeaderAuthor); author != "" {
			c.Set(constants.ContextKeyAuthorID, author)
		}
		c.Next()
	}
}

// ZapLogger logs one line per request.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("site", c.GetString(constants.ContextKeySiteID)))
	}
}

func siteID(c *gin.Context) string {
	return c.GetString(constants.ContextKeySiteID)
}

func currentSite(c *gin.Context) *models.Site {
	v, _ := c.Get(constants.ContextKeySite)
	site, _ := v.(*models.Site)
	return site
}
