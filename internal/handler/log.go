package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// LogHandler lists the caller's audit trail.
type LogHandler struct {
	DB         *gorm.DB
	EncryptKey string
	PageSize   int
}

func NewLogHandler(db *gorm.DB, encryptKey string, pageSize int) *LogHandler {
	return &LogHandler{DB: db, EncryptKey: encryptKey, PageSize: pageSize}
}

type logResp struct {
	ID        uint      `json:"id"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Metadata  string    `json:"metadata,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLogs pages through the caller's audit log, newest first. Filters: ?start, ?end
// (YYYY-MM-DD, inclusive), ?method and ?q (path substring).
func (h *LogHandler) ListLogs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, size := util.Pagination(c, h.PageSize)

	start, err := optionalDate("start", c.Query("start"))
	if err != nil {
		util.Error(c, err)
		return
	}
	end, err := optionalDate("end", c.Query("end"))
	if err != nil {
		util.Error(c, err)
		return
	}

	base := h.DB.WithContext(c.Request.Context()).Model(&models.AuditLog{}).Where("user_id = ?", userID)
	if start != nil {
		base = base.Where("created_at >= ?", *start)
	}
	if end != nil {
		base = base.Where("created_at < ?", end.AddDate(0, 0, 1))
	}
	if m := strings.ToUpper(strings.TrimSpace(c.Query("method"))); m != "" {
		base = base.Where("method = ?", m)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		base = base.Where("path LIKE ?", "%"+q+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	var logs []models.AuditLog
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&logs).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}

	items := make([]logResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		items = append(items, logResp{
			ID:        l.ID,
			Method:    l.Method,
			Path:      l.Path,
			Status:    l.Status,
			Metadata:  util.DecryptField(h.EncryptKey, l.MetadataEnc),
			IP:        l.IP,
			UserAgent: l.UserAgent,
			CreatedAt: l.CreatedAt,
		})
	}
	util.Success(c, util.Response{"items": items, "total": total, "page": page, "size": size})
}
