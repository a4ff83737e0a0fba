// Package apperror はAPIで返すエラーの種別とHTTPレスポンスへの変換を提供します。
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの種別を表します。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthRequired
	KindForbidden
	KindNotFound
	KindTooManyRequests
)

// 既定のクライアント向けメッセージ
const (
	MsgAuthRequired = "You must be logged in to view this page."
	MsgForbidden    = "You are not authorized to perform that action."
	MsgInternal     = "An internal error occurred."
	MsgValidation   = "Validation failed."
)

// Error はAPIエラーを表します。Err は内部ログ用で、クライアントには返しません。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status はエラー種別に対応するHTTPステータスを返します。
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Validation は 422 として返す入力エラーを作成します。
func Validation(fields ...string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: MsgValidation, Fields: fields}
}

// AuthRequired は 401 を作成します。
func AuthRequired(message string) *Error {
	if message == "" {
		message = MsgAuthRequired
	}
	return &Error{Kind: KindAuthRequired, Code: "UNAUTHORIZED", Message: message}
}

// InvalidCredentials はログイン失敗時の 401 を作成します。
// メールアドレスの有無とパスワード不一致を区別しません。
func InvalidCredentials() *Error {
	return &Error{Kind: KindAuthRequired, Code: "INVALID_CREDENTIALS", Message: "Incorrect credentials"}
}

// Forbidden は 403 を作成します。
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: MsgForbidden}
}

// NotFound は 404 を作成します。
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

// TooManyRequests は 429 を作成します。
func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Code: "TOO_MANY_ATTEMPTS", Message: message}
}

// Internal は 500 を作成します。err はサーバー側のログにのみ残ります。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: MsgInternal, Err: err}
}

// IsKind は err が指定した種別の *Error を含むかどうかを返します。
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// From は任意のエラーを *Error に変換します。種別の分からないものは Internal になります。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
