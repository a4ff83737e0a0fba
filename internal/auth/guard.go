package auth

// Decision は認可の判定結果です。
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize は操作ユーザーがリソースの所有者である場合のみ Allow を返します。
// 管理者などによる上書きはありません。
func Authorize(actingUserID, ownerUserID uint) Decision {
	if actingUserID == 0 || actingUserID != ownerUserID {
		return Deny
	}
	return Allow
}
