package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内のマップにセッションを保持します。
// 再起動で消えるため、開発環境とテスト向けです。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。now が nil の場合は time.Now を使います。
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      now,
	}
}

// Get はセッションを返します。期限切れのものは読み出し時に削除します。
func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.Expired(s.now()) {
		s.mu.Lock()
		// 読み出し後に別のセッションで上書きされていないか確認してから消す
		if current, ok := s.sessions[token]; ok && current.Expired(s.now()) {
			delete(s.sessions, token)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	copied := session
	return &copied, nil
}

// Set はセッションを保存します。ExpiresAt が空の場合は ttl から計算します。
func (s *MemoryStore) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	if session == nil || session.Token == "" {
		return errSessionTokenRequired
	}
	stored := *session
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.sessions[stored.Token] = stored
	s.mu.Unlock()
	return nil
}

// Delete はセッションを削除します。
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Sweep は期限切れのセッションをまとめて削除し、削除件数を返します。
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len は保持しているセッション数を返します。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunJanitor は ctx が終わるまで interval ごとに Sweep を実行します。
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
