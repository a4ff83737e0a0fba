package blog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-api/internal/apperror"
	"github.com/yourusername/blog-api/internal/auth"
)

type createPostRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required"`
}

type updatePostRequest struct {
	Title   *string `json:"title" binding:"omitempty,min=1,max=255"`
	Content *string `json:"content" binding:"omitempty,min=1"`
}

type createCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handler は記事とコメントのHTTPハンドラーです。
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler は Handler を作成します。
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register はルートを登録します。rg には RequireLogin を適用しておく必要があります。
func (h *Handler) Register(rg *gin.RouterGroup) {
	posts := rg.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.POST("", h.CreatePost)
		posts.GET("/:postId", h.GetPost)
		posts.PATCH("/:postId", h.UpdatePost)
		posts.DELETE("/:postId", h.DeletePost)

		posts.GET("/:postId/comments", h.ListComments)
		posts.POST("/:postId/comments", h.CreateComment)
		posts.GET("/:postId/comments/:id", h.GetComment)
		posts.PATCH("/:postId/comments/:id", h.UpdateComment)
		posts.DELETE("/:postId/comments/:id", h.DeleteComment)
	}
}

// ListPosts は GET /posts です。
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.service.ListPosts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost は GET /posts/:postId です。
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := h.postID(c)
	if !ok {
		return
	}
	post, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost は POST /posts です。所有者は常にログイン中のユーザーです。
func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperror.FromBinding(err))
		return
	}
	post, err := h.service.CreatePost(c.Request.Context(), userID, req.Title, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost は PATCH /posts/:postId です。
func (h *Handler) UpdatePost(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.postID(c)
	if !ok {
		return
	}
	// 存在確認と所有者チェックを入力の検証より先に行う
	post, err := h.service.OwnedPost(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperror.FromBinding(err))
		return
	}
	post, err = h.service.ApplyPostUpdate(c.Request.Context(), post, PostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost は DELETE /posts/:postId です。
func (h *Handler) DeletePost(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.postID(c)
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), userID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": MsgPostDeleted})
}

// ListComments は GET /posts/:postId/comments です。
func (h *Handler) ListComments(c *gin.Context) {
	postID, ok := h.postID(c)
	if !ok {
		return
	}
	comments, err := h.service.ListComments(c.Request.Context(), postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// GetComment は GET /posts/:postId/comments/:id です。
func (h *Handler) GetComment(c *gin.Context) {
	postID, id, ok := h.commentIDs(c)
	if !ok {
		return
	}
	comment, err := h.service.GetComment(c.Request.Context(), postID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// CreateComment は POST /posts/:postId/comments です。
func (h *Handler) CreateComment(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	postID, ok := h.postID(c)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperror.FromBinding(err))
		return
	}
	comment, err := h.service.CreateComment(c.Request.Context(), userID, postID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment は PATCH /posts/:postId/comments/:id です。
func (h *Handler) UpdateComment(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	postID, id, ok := h.commentIDs(c)
	if !ok {
		return
	}
	comment, err := h.service.OwnedComment(c.Request.Context(), userID, postID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperror.FromBinding(err))
		return
	}
	comment, err = h.service.ApplyCommentUpdate(c.Request.Context(), comment, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment は DELETE /posts/:postId/comments/:id です。
func (h *Handler) DeleteComment(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	postID, id, ok := h.commentIDs(c)
	if !ok {
		return
	}
	if err := h.service.DeleteComment(c.Request.Context(), userID, postID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": MsgCommentDeleted})
}

func (h *Handler) fail(c *gin.Context, err error) {
	apperror.Respond(c, h.logger, err)
}

func (h *Handler) currentUser(c *gin.Context) (uint, bool) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		h.fail(c, apperror.AuthRequired(""))
		return 0, false
	}
	return userID, true
}

func (h *Handler) postID(c *gin.Context) (uint, bool) {
	id, ok := parseID(c.Param("postId"))
	if !ok {
		h.fail(c, apperror.NotFound(MsgPostNotFound))
		return 0, false
	}
	return id, true
}

func (h *Handler) commentIDs(c *gin.Context) (uint, uint, bool) {
	postID, ok := h.postID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		h.fail(c, apperror.NotFound(MsgCommentNotFound))
		return 0, 0, false
	}
	return postID, id, true
}

// parseID は正の整数IDを解釈します。数値でないIDは存在しないリソースとして扱います。
func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
