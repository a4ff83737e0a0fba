package auth

import (
	"errors"
	"log/slog"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-api/internal/apperror"
)

// RequireLogin はセッションを検証するミドルウェアを返します。
// 成功するとユーザーIDを ContextUserKey に保存します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		session := sessions.Default(c)
		token, _ := session.Get(sessionKeyToken).(string)

		userID, err := m.sessions.Validate(ctx, token)
		if err != nil {
			if errors.Is(err, ErrAuthRequired) {
				m.rejectSession(c, session, token != "")
				return
			}
			apperror.Respond(c, m.logger, apperror.Internal(err))
			return
		}

		// ユーザーが削除されていたらここで初めてセッションを無効にする
		exists, err := m.users.Exists(ctx, userID)
		if err != nil {
			apperror.Respond(c, m.logger, apperror.Internal(err))
			return
		}
		if !exists {
			if err := m.sessions.Destroy(ctx, token); err != nil {
				m.logger.WarnContext(ctx, "failed to destroy orphaned session", slog.Any("error", err))
			}
			m.rejectSession(c, session, true)
			return
		}

		c.Set(ContextUserKey, userID)
		c.Next()
	}
}

func (m *Manager) rejectSession(c *gin.Context, session sessions.Session, hadCookie bool) {
	if hadCookie {
		if err := m.clearCookie(session); err != nil {
			m.logger.WarnContext(c.Request.Context(), "failed to clear session cookie", slog.Any("error", err))
		}
	}
	m.metrics.IncSessionRejected()
	apperror.Respond(c, m.logger, apperror.AuthRequired(""))
}

// CurrentUserID は RequireLogin が保存したユーザーIDを返します。
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
