package auth

import "github.com/yourusername/blog-api/internal/models"

// maxPasswordBytes は bcrypt が扱える入力の上限です。validator の max は文字数で数えるため別に確認します。
const maxPasswordBytes = 72

type signupRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{Name: u.Name, Email: u.Email}
}
