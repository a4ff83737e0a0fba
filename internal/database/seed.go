package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/blog-api/internal/models"
)

// SeedPassword はデモユーザーの平文パスワードです。
const SeedPassword = "password"

// PasswordHasher は平文パスワードをハッシュ化する関数です。
type PasswordHasher func(plaintext string) (string, error)

// SeedResult は投入した件数です。
type SeedResult struct {
	Users    int
	Posts    int
	Comments int
}

// Seed はデモ用のユーザー・記事・コメントを投入します。
// users が空でない場合は何もしません。
func Seed(ctx context.Context, db *gorm.DB, hash PasswordHasher) (*SeedResult, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &SeedResult{}, nil
	}

	result := &SeedResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := []models.User{
			{Name: "John Adam", Email: "johnadam@gmail.com"},
			{Name: "Bill Smith", Email: "billsmith@yahoo.com"},
		}
		for i := range users {
			hashed, err := hash(SeedPassword)
			if err != nil {
				return fmt.Errorf("hash seed password: %w", err)
			}
			users[i].PasswordHash = hashed
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		result.Users = len(users)

		author := users[0]
		posts := []models.Post{
			{
				Title:   "Learn React",
				Content: "Make sure to watch videos on React and you will learn it easily",
				UserID:  author.ID,
			},
			{
				Title:   "Practicing HTML",
				Content: "After learing the basics of HTML, make sure to pracitce daily until you eventually get the hang of it",
				UserID:  author.ID,
			},
		}
		if err := tx.Create(&posts).Error; err != nil {
			return err
		}
		result.Posts = len(posts)

		comment := models.Comment{
			Content: "Thank you for the input",
			UserID:  users[1].ID,
			PostID:  posts[0].ID,
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		result.Comments = 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed failed: %w", err)
	}
	return result, nil
}
