package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost は bcrypt のコストです。
const PasswordCost = 10

// ErrPasswordHash はハッシュ化に失敗したことを表します。
// 平文やハッシュ値はエラーに含めません。
var ErrPasswordHash = errors.New("failed to hash password")

// HashPassword はソルト付きでパスワードをハッシュ化します。
// 同じ平文でも呼び出しごとに異なる値になります。
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", ErrPasswordHash
	}
	return string(hashed), nil
}

// VerifyPassword は平文とハッシュが一致するかを定数時間で比較します。
// 不一致や壊れたハッシュでは false を返すだけでエラーにはしません。
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnVerify は存在しないユーザーへのログインでも bcrypt の比較を1回行い、
// 応答時間からメールアドレスの有無を推測されないようにします。
func burnVerify(plaintext string) {
	dummyHashOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), PasswordCost)
		if err == nil {
			dummyHash = string(hashed)
		}
	})
	_ = VerifyPassword(plaintext, dummyHash)
}
