package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// ProfileHandler serves the caller's own user record.
type ProfileHandler struct {
	DB     *gorm.DB
	Hasher auth.Hasher
}

func NewProfileHandler(db *gorm.DB, hasher auth.Hasher) *ProfileHandler {
	return &ProfileHandler{DB: db, Hasher: hasher}
}

func (h *ProfileHandler) load(c *gin.Context) (*models.User, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		util.Error(c, apperr.FromStore(err, "user not found"))
		return nil, false
	}
	return &user, true
}

func (h *ProfileHandler) Me(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	util.Success(c, util.Response{"user": toUserResp(user)})
}

type updateProfileReq struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=64"`
	LastName  *string `json:"last_name" binding:"omitempty,max=64"`
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
}

// UpdateProfile changes only the fields that were sent.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		updates["first_name"] = user.FirstName
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
		updates["last_name"] = user.LastName
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		updates["email"] = user.Email
	}
	if len(updates) > 0 {
		if err := h.DB.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
			util.Error(c, apperr.FromStore(err, ""))
			return
		}
	}
	util.Success(c, util.Response{"user": toUserResp(user)})
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	var req changePasswordReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	if !h.Hasher.Verify(req.OldPassword, user.PasswordHash) {
		util.Error(c, apperr.Validation("old password is incorrect",
			apperr.FieldError{Field: "old_password", Message: "is incorrect"}))
		return
	}
	if !auth.IsStrongPassword(req.NewPassword) {
		util.Error(c, apperr.Validation("weak password",
			apperr.FieldError{Field: "new_password", Message: "must be 8-64 characters with upper case, lower case and a digit"}))
		return
	}
	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		util.Error(c, apperr.Internal("hash password", err))
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(user).Update("password_hash", hash).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	util.Success(c, util.Response{"message": "password changed, please log in again"})
}

// Deactivate soft-disables the caller. Existing tokens stop working at the middleware.
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(user).Update("is_active", false).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	util.Success(c, util.Response{"message": "account deactivated"})
}
