package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// Response is the data object of a successful reply.
type Response map[string]interface{}

const loggerKey = "logger"

// Success writes {success: true, data}.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// Created writes {success: true, data} with 201.
func Created(c *gin.Context, data Response) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error writes {success: false, message, errors?}. The status comes from the error kind;
// the wrapped cause is logged, never sent.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal server error", err)
	}
	status := apperr.HTTPStatus(ae.Kind)

	if status >= http.StatusInternalServerError {
		l := RequestLogger(c)
		l.Error().Err(err).Str("kind", ae.Kind.String()).Msg("request failed")
	}

	body := gin.H{
		"success": false,
		"message": ae.Message,
	}
	if len(ae.Fields) > 0 {
		body["errors"] = ae.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// SetRequestLogger stores the request-scoped logger for handlers and Error.
func SetRequestLogger(c *gin.Context, l zerolog.Logger) {
	c.Set(loggerKey, l)
}

// RequestLogger returns the request-scoped logger, or a disabled one.
func RequestLogger(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Nop()
}

// BindJSON decodes the body and turns binding failures into a validation error.
func BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return apperr.Validation("invalid request parameters", fields...)
	}
	if errors.Is(err, money.ErrInvalidAmount) {
		return apperr.Validation("invalid amount: use a number with at most two decimal places")
	}
	return apperr.Validation("malformed request body")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
