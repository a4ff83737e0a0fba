// Package store はgormを使ったユーザー・記事・コメントの永続化を提供します。
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yourusername/blog-api/internal/models"
)

var (
	// ErrNotFound は対象のレコードが存在しないことを表します。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表します。
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store はリポジトリをまとめたものです。
type Store struct {
	Users    *Users
	Posts    *Posts
	Comments *Comments
}

// New は db を共有するリポジトリ群を作成します。
func New(db *gorm.DB) *Store {
	return &Store{
		Users:    &Users{db: db},
		Posts:    &Posts{db: db},
		Comments: &Comments{db: db},
	}
}

// Users はユーザーの永続化を担います。
type Users struct {
	db *gorm.DB
}

// Create はユーザーを保存します。メールアドレス重複時は ErrDuplicateEmail を返します。
func (r *Users) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindByEmail はメールアドレスでユーザーを探します。
func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByID はIDでユーザーを探します。
func (r *Users) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Exists はユーザーが存在するかどうかを返します。
func (r *Users) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Posts は記事の永続化を担います。
type Posts struct {
	db *gorm.DB
}

// List はすべての記事をコメント付きで返します。
func (r *Posts) List(ctx context.Context) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("comments.id") }).
		Order("posts.id").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Find はIDで記事を探します。
func (r *Posts) Find(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// Create は記事を保存します。
func (r *Posts) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// Update は指定した列を更新し、更新後の記事を返します。
func (r *Posts) Update(ctx context.Context, post *models.Post, changes map[string]any) (*models.Post, error) {
	if len(changes) > 0 {
		if err := r.db.WithContext(ctx).Model(post).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	return r.Find(ctx, post.ID)
}

// Delete は記事を削除します。コメントは外部キーの CASCADE で削除されます。
func (r *Posts) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Comments はコメントの永続化を担います。
type Comments struct {
	db *gorm.DB
}

// ListByPost は記事に付いたコメントを返します。
func (r *Comments) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := make([]models.Comment, 0)
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("id").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// Find は記事内のコメントをIDで探します。
func (r *Comments) Find(ctx context.Context, postID, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&comment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

// Create はコメントを保存します。
func (r *Comments) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// Update は指定した列を更新し、更新後のコメントを返します。
func (r *Comments) Update(ctx context.Context, comment *models.Comment, changes map[string]any) (*models.Comment, error) {
	if len(changes) > 0 {
		if err := r.db.WithContext(ctx).Model(comment).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	return r.Find(ctx, comment.PostID, comment.ID)
}

// Delete はコメントを削除します。
func (r *Comments) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation はドライバーのエラー変換が効かない場合も文言で判定します。
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
