package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

const maxAuditBody = 2000

// AuditMiddleware records every mutating request of an authenticated user. The body
// summary is encrypted; password fields never reach it.
func AuditMiddleware(db *gorm.DB, encryptKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil && isJSON(c) {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
		}

		c.Next()

		id, err := auth.FromContext(c)
		if err != nil {
			return
		}

		var meta string
		if len(body) > 0 && len(body) <= maxAuditBody && !strings.Contains(strings.ToLower(string(body)), "password") {
			meta = string(body)
		}
		enc, err := util.EncryptField(encryptKey, meta)
		if err != nil {
			enc = ""
		}

		userID := id.UserID
		entry := models.AuditLog{
			UserID:      &userID,
			Path:        c.FullPath(),
			Method:      c.Request.Method,
			Status:      c.Writer.Status(),
			IP:          c.ClientIP(),
			UserAgent:   truncate(c.Request.UserAgent(), 255),
			MetadataEnc: enc,
		}
		if entry.Path == "" {
			entry.Path = truncate(c.Request.URL.Path, 255)
		}
		if err := db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
			l := util.RequestLogger(c)
			l.Warn().Err(err).Msg("write audit log failed")
		}
	}
}

func isJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
