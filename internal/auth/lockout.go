package auth

import (
	"sync"
	"time"
)

// LoginLimits はログイン試行制限の設定です。MaxAttempts が0以下なら制限しません。
type LoginLimits struct {
	MaxAttempts int
	Window      time.Duration
	Lock        time.Duration
}

// DefaultLoginLimits は 15分間に5回失敗すると10分ロックします。
var DefaultLoginLimits = LoginLimits{
	MaxAttempts: 5,
	Window:      15 * time.Minute,
	Lock:        10 * time.Minute,
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// loginLimiter はクライアントIP単位でログイン失敗を数えます。
type loginLimiter struct {
	limits   LoginLimits
	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

func newLoginLimiter(limits LoginLimits, now func() time.Time) *loginLimiter {
	if now == nil {
		now = time.Now
	}
	return &loginLimiter{
		limits:   limits,
		attempts: make(map[string]*attemptState),
		now:      now,
	}
}

func (l *loginLimiter) enabled() bool {
	return l != nil && l.limits.MaxAttempts > 0
}

// checkLock はロック中であれば残り時間を返します。
func (l *loginLimiter) checkLock(ip string) time.Duration {
	if !l.enabled() {
		return 0
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[ip]
	if !ok {
		return 0
	}
	now := l.now()
	if l.stale(state, now) {
		delete(l.attempts, ip)
		return 0
	}
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// recordFailure は失敗を記録し、上限に達したらロックします。
func (l *loginLimiter) recordFailure(ip string) {
	if !l.enabled() {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.pruneLocked(now)

	state, ok := l.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > l.limits.Window || l.lockExpired(state, now) {
		state = &attemptState{firstAttempt: now}
		l.attempts[ip] = state
	}

	state.count++
	if state.count >= l.limits.MaxAttempts {
		state.lockedUntil = now.Add(l.limits.Lock)
		state.count = l.limits.MaxAttempts
	}
}

func (l *loginLimiter) reset(ip string) {
	if !l.enabled() {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, ip)
}

// pruneLocked はウィンドウもロックも過ぎたエントリを削除します。l.lock を保持して呼び出します。
func (l *loginLimiter) pruneLocked(now time.Time) {
	for ip, state := range l.attempts {
		if l.stale(state, now) {
			delete(l.attempts, ip)
		}
	}
}

func (l *loginLimiter) stale(state *attemptState, now time.Time) bool {
	return now.Sub(state.firstAttempt) > l.limits.Window && !now.Before(state.lockedUntil)
}

// ロック解除後は失敗回数を数え直す
func (l *loginLimiter) lockExpired(state *attemptState, now time.Time) bool {
	return !state.lockedUntil.IsZero() && !now.Before(state.lockedUntil)
}
