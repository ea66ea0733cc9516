package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{DB: db}
}

type categoryResp struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsSystem bool   `json:"is_system"`
}

func toCategoryResp(cat *models.Category) categoryResp {
	return categoryResp{ID: cat.ID, Name: cat.Name, Type: string(cat.Type), IsSystem: cat.IsSystem()}
}

// List returns system categories and the caller's own, optionally of one ?type.
func (h *CategoryHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	q := h.DB.WithContext(c.Request.Context()).
		Where("user_id IS NULL OR user_id = ?", userID)
	if t := strings.ToLower(c.Query("type")); t != "" {
		if t != string(models.CategoryIncome) && t != string(models.CategoryExpense) {
			util.Error(c, apperr.Validation("invalid type", apperr.FieldError{Field: "type", Message: "must be income or expense"}))
			return
		}
		q = q.Where("type = ?", t)
	}
	var cats []models.Category
	if err := q.Order("type ASC, name ASC, id ASC").Find(&cats).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	items := make([]categoryResp, 0, len(cats))
	for i := range cats {
		items = append(items, toCategoryResp(&cats[i]))
	}
	util.Success(c, util.Response{"items": items})
}

type createCategoryReq struct {
	Name string `json:"name" binding:"required,max=64"`
	Type string `json:"type" binding:"required,oneof=income expense"`
}

// Create adds a user category. A name already visible for that type is a conflict.
func (h *CategoryHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createCategoryReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		util.Error(c, apperr.Validation("invalid category", apperr.FieldError{Field: "name", Message: "is required"}))
		return
	}

	ctx := c.Request.Context()
	var count int64
	if err := h.DB.WithContext(ctx).Model(&models.Category{}).
		Where("(user_id IS NULL OR user_id = ?) AND type = ? AND LOWER(name) = LOWER(?)", userID, req.Type, name).
		Count(&count).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	if count > 0 {
		util.Error(c, apperr.Conflict("category already exists"))
		return
	}

	cat := models.Category{UserID: &userID, Name: name, Type: models.CategoryType(req.Type)}
	if err := h.DB.WithContext(ctx).Create(&cat).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	util.Created(c, util.Response{"category": toCategoryResp(&cat)})
}
