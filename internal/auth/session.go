package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultSessionTTL はセッションの既定の有効期限です。作成時点から固定で延長しません。
const DefaultSessionTTL = time.Hour

var (
	// ErrAuthRequired はセッションが無い・期限切れ・破棄済みであることを表します。
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionNotFound はストアにセッションが無いことを表します。
	ErrSessionNotFound = errors.New("session not found")

	errSessionTokenRequired = errors.New("session token is required")
)

// Session はサーバー側で保持するセッションです。
type Session struct {
	Token     string    `json:"-"`
	UserID    uint      `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired は now 時点で期限切れかどうかを返します（ExpiresAt ちょうどで期限切れ）。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore はセッションの保存先です。並行に呼ばれても安全である必要があります。
type SessionStore interface {
	// Get はトークンに対応するセッションを返します。無い・期限切れの場合は ErrSessionNotFound。
	Get(ctx context.Context, token string) (*Session, error)
	// Set はセッションを ttl 付きで保存します。
	Set(ctx context.Context, session *Session, ttl time.Duration) error
	// Delete はセッションを削除します。存在しなくてもエラーにしません。
	Delete(ctx context.Context, token string) error
}

// SessionManager はセッションの発行・検証・破棄を行います。
type SessionManager struct {
	store    SessionStore
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// SessionOption は SessionManager の設定を変更します。
type SessionOption func(*SessionManager)

// WithClock は現在時刻の取得関数を差し替えます。
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTokenGenerator はトークン生成関数を差し替えます。
func WithTokenGenerator(gen func() (string, error)) SessionOption {
	return func(m *SessionManager) {
		if gen != nil {
			m.newToken = gen
		}
	}
}

// NewSessionManager は SessionManager を作成します。ttl が0以下なら DefaultSessionTTL を使います。
func NewSessionManager(store SessionStore, ttl time.Duration, opts ...SessionOption) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionManager{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		newToken: generateToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// TTL はセッションの有効期限を返します。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create はユーザーのセッションを発行し、Cookieに載せる不透明なトークンを返します。
func (m *SessionManager) Create(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", errors.New("userID is required")
	}
	token, err := m.newToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	session := &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Set(ctx, session, m.ttl); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

// Validate はトークンを検証してユーザーIDを返します。
// 無い・期限切れ・破棄済みのトークンは ErrAuthRequired、ストア障害はそのまま返します。
func (m *SessionManager) Validate(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrAuthRequired
	}

	session, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, ErrAuthRequired
		}
		return 0, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(m.now()) {
		// 期限切れは拒否するだけでよいが、ついでに掃除しておく
		_ = m.store.Delete(ctx, token)
		return 0, ErrAuthRequired
	}
	return session.UserID, nil
}

// Destroy はセッションを破棄します。未知・破棄済みのトークンでも成功扱いです。
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
