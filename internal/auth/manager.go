// Package auth は認証・認可機能を提供します。
//
// パスワードのハッシュ化、サーバー側セッションの発行と検証、
// 所有者チェックによる認可、/signup /login /logout のハンドラーを含みます。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-api/internal/apperror"
	"github.com/yourusername/blog-api/internal/metrics"
	"github.com/yourusername/blog-api/internal/models"
	"github.com/yourusername/blog-api/internal/store"
)

const (
	// sessionKeyToken はCookieセッションに保存するトークンのキーです。
	sessionKeyToken = "sid"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザーIDを共有するためのキーです。
const ContextUserKey = "auth.user_id"

// UserRepository は認証で使うユーザーの永続化処理です。
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

// Options は Manager の依存関係です。
type Options struct {
	Users    UserRepository
	Sessions *SessionManager
	Limits   LoginLimits
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Secure は Cookie に Secure 属性を付けるかどうかです（release モードで true）。
	Secure bool
	// Now はログイン試行制限の時刻取得に使います。nil なら time.Now。
	Now func() time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users    UserRepository
	sessions *SessionManager
	limiter  *loginLimiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	secure   bool
}

// NewManager は認証マネージャーを作成します。
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		users:    opts.Users,
		sessions: opts.Sessions,
		limiter:  newLoginLimiter(opts.Limits, opts.Now),
		metrics:  opts.Metrics,
		logger:   logger,
		secure:   opts.Secure,
	}
}

// CookieOptions はセッションCookieの属性を返します。MaxAge はセッションの TTL と同じです。
func CookieOptions(ttl time.Duration, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Signup は POST /signup のハンドラーです。
func (m *Manager) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, m.logger, apperror.FromBinding(err))
		return
	}
	if len(req.Password) > maxPasswordBytes {
		apperror.Respond(c, m.logger, apperror.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)))
		return
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		apperror.Respond(c, m.logger, apperror.Internal(err))
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
	}
	if err := m.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			apperror.Respond(c, m.logger, apperror.Validation("email must be unique"))
			return
		}
		apperror.Respond(c, m.logger, apperror.Internal(err))
		return
	}

	m.metrics.IncSignup()

	// 登録後はそのままログイン状態にする。
	// ユーザーは作成済みなので、セッションの発行に失敗しても 201 を返し、Cookie なしでログインしてもらう
	if err := m.startSession(c, user.ID); err != nil {
		m.logger.ErrorContext(c.Request.Context(), "failed to start session after signup",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.Any("error", err),
		)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created!",
		"user":    newUserResponse(user),
	})
}

// Login は POST /login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, m.logger, apperror.FromBinding(err))
		return
	}

	ip := c.ClientIP()
	if retryAfter := m.limiter.checkLock(ip); retryAfter > 0 {
		// Retry-After は秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()+0.5), 10))
		m.metrics.IncLogin(metrics.LoginLocked)
		apperror.Respond(c, m.logger, apperror.TooManyRequests("Too many failed login attempts. Please try again later."))
		return
	}

	ctx := c.Request.Context()
	user, err := m.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			apperror.Respond(c, m.logger, apperror.Internal(err))
			return
		}
		burnVerify(req.Password)
		m.rejectLogin(c, ip)
		return
	}

	if !VerifyPassword(req.Password, user.PasswordHash) {
		m.rejectLogin(c, ip)
		return
	}

	m.limiter.reset(ip)

	if err := m.startSession(c, user.ID); err != nil {
		apperror.Respond(c, m.logger, apperror.Internal(err))
		return
	}
	m.metrics.IncLogin(metrics.LoginSucceeded)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"user":    newUserResponse(user),
	})
}

// Logout は DELETE /logout のハンドラーです。
// セッションが無くても成功として扱い、Cookieを消します。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	token, _ := session.Get(sessionKeyToken).(string)

	if err := m.sessions.Destroy(c.Request.Context(), token); err != nil {
		apperror.Respond(c, m.logger, apperror.Internal(err))
		return
	}

	if err := m.clearCookie(session); err != nil {
		apperror.Respond(c, m.logger, apperror.Internal(err))
		return
	}
	m.metrics.IncLogout()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (m *Manager) rejectLogin(c *gin.Context, ip string) {
	m.limiter.recordFailure(ip)
	m.metrics.IncLogin(metrics.LoginFailed)
	apperror.Respond(c, m.logger, apperror.InvalidCredentials())
}

// startSession はサーバー側セッションを発行し、トークンをCookieに保存します。
// 既存のセッションがあれば破棄して差し替えます。
func (m *Manager) startSession(c *gin.Context, userID uint) error {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	if previous, ok := session.Get(sessionKeyToken).(string); ok && previous != "" {
		if err := m.sessions.Destroy(ctx, previous); err != nil {
			m.logger.WarnContext(ctx, "failed to destroy previous session", slog.Any("error", err))
		}
	}

	token, err := m.sessions.Create(ctx, userID)
	if err != nil {
		return err
	}

	session.Options(CookieOptions(m.sessions.TTL(), m.secure))
	session.Set(sessionKeyToken, token)
	if err := session.Save(); err != nil {
		_ = m.sessions.Destroy(ctx, token)
		return err
	}
	return nil
}

func (m *Manager) clearCookie(session sessions.Session) error {
	session.Clear()
	opts := CookieOptions(m.sessions.TTL(), m.secure)
	opts.MaxAge = -1
	session.Options(opts)
	return session.Save()
}
