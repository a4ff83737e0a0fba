package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RequestIDKey は gin.Context に保存されたリクエストIDのキーです。
const RequestIDKey = "request_id"

// Respond は err をJSONレスポンスとして書き出し、リクエストを中断します。
// 500 の場合のみ原因をサーバー側でログに残します。
func Respond(c *gin.Context, logger *slog.Logger, err error) {
	appErr := From(err)
	status := appErr.Status()

	if status >= 500 && logger != nil {
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("request_id", c.GetString(RequestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", appErr.Err),
		)
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Kind == KindValidation {
		fields := appErr.Fields
		if fields == nil {
			fields = []string{}
		}
		body["errors"] = fields
	}
	c.AbortWithStatusJSON(status, body)
}

// FromBinding は ShouldBindJSON のエラーを 422 の入力エラーに変換します。
func FromBinding(err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldMessage(fe))
		}
		return Validation(fields...)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return Validation("request body must be a JSON object")
	case errors.As(err, &syntaxErr):
		return Validation("request body is not valid JSON")
	case errors.As(err, &typeErr):
		return Validation(fmt.Sprintf("%s has an invalid type", typeErr.Field))
	}
	return Validation(err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
