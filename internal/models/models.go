// Package models はデータベースに保存するエンティティを定義します。
package models

import "time"

// User はブログの利用者です。PasswordHash はJSONに出力しません。
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password;not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Post はユーザーが作成した記事です。
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Comments  []Comment `gorm:"foreignKey:PostID" json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment は記事に付くコメントです。
// posts への外部キーは ON DELETE CASCADE で、記事の削除時に一緒に削除されます（database パッケージのマイグレーションで定義）。
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID は所有者のユーザーIDを返します。
func (p *Post) OwnerID() uint { return p.UserID }

// OwnerID は所有者のユーザーIDを返します。
func (c *Comment) OwnerID() uint { return c.UserID }

// All はマイグレーションとシードで扱うモデルを依存順に返します。
func All() []any {
	return []any{&User{}, &Post{}, &Comment{}}
}
