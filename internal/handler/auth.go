package handler

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 10 * time.Minute
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// AuthHandler serves register and login.
type AuthHandler struct {
	DB     *gorm.DB
	Hasher auth.Hasher
	Issuer *auth.Issuer
	Log    zerolog.Logger
	now    func() time.Time
}

func NewAuthHandler(db *gorm.DB, hasher auth.Hasher, issuer *auth.Issuer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Hasher: hasher, Issuer: issuer, Log: log, now: time.Now}
}

type registerReq struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required,email,max=255"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name" binding:"max=64"`
	LastName        string `json:"last_name" binding:"max=64"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var fields []apperr.FieldError
	if !usernameRe.MatchString(req.Username) {
		fields = append(fields, apperr.FieldError{Field: "username", Message: "must be 3-30 letters, digits or underscores"})
	}
	if !auth.IsStrongPassword(req.Password) {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "must be 8-64 characters with upper case, lower case and a digit"})
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		fields = append(fields, apperr.FieldError{Field: "confirm_password", Message: "does not match password"})
	}
	if len(fields) > 0 {
		util.Error(c, apperr.Validation("invalid registration", fields...))
		return
	}

	// case-insensitive uniqueness
	var count int64
	if err := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?) OR LOWER(email) = ?", req.Username, req.Email).
		Count(&count).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	if count > 0 {
		util.Error(c, apperr.Conflict("username or email already registered"))
		return
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		util.Error(c, apperr.Internal("hash password", err))
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}

	h.Log.Info().Uint("user_id", user.ID).Msg("user registered")
	util.Created(c, util.Response{"user": toUserResp(&user)})
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login accepts a username or email. Five wrong passwords lock the user out for ten
// minutes; unknown users and wrong passwords get the same answer.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	login := strings.TrimSpace(req.Username)
	ctx := c.Request.Context()

	var user models.User
	err := h.DB.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", login, login).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.Error(c, apperr.Unauthenticated("invalid username or password"))
		return
	}
	if err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}

	now := h.now().UTC()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		util.Error(c, apperr.Unauthenticated("too many failed attempts, try again later"))
		return
	}

	if !h.Hasher.Verify(req.Password, user.PasswordHash) {
		updates := map[string]interface{}{"failed_login_attempts": user.FailedLoginAttempts + 1}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
			updates["failed_login_attempts"] = 0
			h.Log.Warn().Uint("user_id", user.ID).Msg("user locked after failed logins")
		}
		if err := h.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("record failed login")
		}
		util.Error(c, apperr.Unauthenticated("invalid username or password"))
		return
	}

	if !user.IsActive {
		util.Error(c, apperr.Forbidden("account is deactivated"))
		return
	}

	if err := h.DB.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
		"last_login_ip":         c.ClientIP(),
	}).Error; err != nil {
		util.Error(c, apperr.FromStore(err, ""))
		return
	}
	user.LastLoginAt = &now

	token, exp, err := h.Issuer.Issue(user.ID)
	if err != nil {
		util.Error(c, apperr.Internal("issue token", err))
		return
	}

	util.Success(c, util.Response{
		"token":      token,
		"expires_at": exp.UTC(),
		"user":       toUserResp(&user),
	})
}
