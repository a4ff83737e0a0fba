// Package blog は記事とコメントのユースケースとHTTPハンドラーを提供します。
package blog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yourusername/blog-api/internal/apperror"
	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/metrics"
	"github.com/yourusername/blog-api/internal/models"
	"github.com/yourusername/blog-api/internal/store"
)

// クライアント向けメッセージ
const (
	MsgPostNotFound    = "Post not found"
	MsgCommentNotFound = "Comment not found"
	MsgPostDeleted     = "Post deleted successfully"
	MsgCommentDeleted  = "Comment deleted successfully"
)

// リソース種別（認可拒否メトリクスのラベル）
const (
	resourcePost    = "post"
	resourceComment = "comment"
)

// PostRepository は記事の永続化処理です。
type PostRepository interface {
	List(ctx context.Context) ([]models.Post, error)
	Find(ctx context.Context, id uint) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post, changes map[string]any) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
}

// CommentRepository はコメントの永続化処理です。
type CommentRepository interface {
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	Find(ctx context.Context, postID, id uint) (*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment, changes map[string]any) (*models.Comment, error)
	Delete(ctx context.Context, id uint) error
}

// PostInput は記事の作成・更新内容です。更新時は nil のフィールドを変更しません。
type PostInput struct {
	Title   *string
	Content *string
}

// Service は記事とコメントの操作を提供します。
// 更新・削除は必ず「存在確認 → 所有者チェック → 変更」の順に行います。
type Service struct {
	posts    PostRepository
	comments CommentRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService は Service を作成します。
func NewService(posts PostRepository, comments CommentRepository, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		posts:    posts,
		comments: comments,
		metrics:  m,
		logger:   logger,
	}
}

// ListPosts はすべての記事をコメント付きで返します。
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for i := range posts {
		if posts[i].Comments == nil {
			posts[i].Comments = []models.Comment{}
		}
	}
	return posts, nil
}

// GetPost は記事をコメント付きで返します。
func (s *Service) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	post.Comments = comments
	return post, nil
}

// CreatePost は userID を所有者として記事を作成します。
func (s *Service) CreatePost(ctx context.Context, userID uint, title, content string) (*models.Post, error) {
	post := &models.Post{
		Title:   title,
		Content: content,
		UserID:  userID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperror.Internal(err)
	}
	post.Comments = []models.Comment{}
	return post, nil
}

// OwnedPost は記事を読み込み、actingUserID が所有者であることを確認します。
// 記事が無ければ 404、所有者でなければ 403 です。
func (s *Service) OwnedPost(ctx context.Context, actingUserID, id uint) (*models.Post, error) {
	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actingUserID, post.OwnerID(), resourcePost); err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost は所有者であれば記事を更新します。
func (s *Service) UpdatePost(ctx context.Context, actingUserID, id uint, input PostInput) (*models.Post, error) {
	post, err := s.OwnedPost(ctx, actingUserID, id)
	if err != nil {
		return nil, err
	}
	return s.ApplyPostUpdate(ctx, post, input)
}

// ApplyPostUpdate は OwnedPost で確認済みの記事に変更を反映し、コメント付きで返します。
func (s *Service) ApplyPostUpdate(ctx context.Context, post *models.Post, input PostInput) (*models.Post, error) {
	changes := make(map[string]any, 2)
	if input.Title != nil {
		changes["title"] = *input.Title
	}
	if input.Content != nil {
		changes["content"] = *input.Content
	}

	updated, err := s.posts.Update(ctx, post, changes)
	if err != nil {
		return nil, s.translate(err, MsgPostNotFound)
	}
	comments, err := s.comments.ListByPost(ctx, updated.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	updated.Comments = comments
	return updated, nil
}

// DeletePost は所有者であれば記事を削除します。コメントも一緒に削除されます。
func (s *Service) DeletePost(ctx context.Context, actingUserID, id uint) error {
	post, err := s.OwnedPost(ctx, actingUserID, id)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return s.translate(err, MsgPostNotFound)
	}
	return nil
}

// ListComments は記事に付いたコメントを返します。記事が無ければ 404 です。
func (s *Service) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return comments, nil
}

// GetComment は記事内のコメントを返します。
func (s *Service) GetComment(ctx context.Context, postID, id uint) (*models.Comment, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.findComment(ctx, postID, id)
}

// CreateComment は userID を所有者としてコメントを作成します。
func (s *Service) CreateComment(ctx context.Context, userID, postID uint, content string) (*models.Comment, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, err
	}
	comment := &models.Comment{
		Content: content,
		UserID:  userID,
		PostID:  postID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperror.Internal(err)
	}
	return comment, nil
}

// OwnedComment は記事内のコメントを読み込み、actingUserID が所有者であることを確認します。
func (s *Service) OwnedComment(ctx context.Context, actingUserID, postID, id uint) (*models.Comment, error) {
	comment, err := s.GetComment(ctx, postID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actingUserID, comment.OwnerID(), resourceComment); err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment は所有者であればコメントを更新します。
func (s *Service) UpdateComment(ctx context.Context, actingUserID, postID, id uint, content string) (*models.Comment, error) {
	comment, err := s.OwnedComment(ctx, actingUserID, postID, id)
	if err != nil {
		return nil, err
	}
	return s.ApplyCommentUpdate(ctx, comment, content)
}

// ApplyCommentUpdate は OwnedComment で確認済みのコメントの本文を更新します。
func (s *Service) ApplyCommentUpdate(ctx context.Context, comment *models.Comment, content string) (*models.Comment, error) {
	updated, err := s.comments.Update(ctx, comment, map[string]any{"content": content})
	if err != nil {
		return nil, s.translate(err, MsgCommentNotFound)
	}
	return updated, nil
}

// DeleteComment は所有者であればコメントを削除します。
func (s *Service) DeleteComment(ctx context.Context, actingUserID, postID, id uint) error {
	comment, err := s.OwnedComment(ctx, actingUserID, postID, id)
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return s.translate(err, MsgCommentNotFound)
	}
	return nil
}

func (s *Service) findPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.Find(ctx, id)
	if err != nil {
		return nil, s.translate(err, MsgPostNotFound)
	}
	return post, nil
}

func (s *Service) findComment(ctx context.Context, postID, id uint) (*models.Comment, error) {
	comment, err := s.comments.Find(ctx, postID, id)
	if err != nil {
		return nil, s.translate(err, MsgCommentNotFound)
	}
	return comment, nil
}

func (s *Service) authorize(ctx context.Context, actingUserID, ownerUserID uint, resource string) error {
	if auth.Authorize(actingUserID, ownerUserID) == auth.Allow {
		return nil
	}
	s.metrics.IncAuthorizationDenied(resource)
	s.logger.InfoContext(ctx, "authorization denied",
		slog.String("resource", resource),
		slog.Uint64("user_id", uint64(actingUserID)),
		slog.Uint64("owner_id", uint64(ownerUserID)),
	)
	return apperror.Forbidden()
}

// translate はストアのエラーをAPIエラーに変換します。
func (s *Service) translate(err error, notFoundMessage string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound(notFoundMessage)
	}
	return apperror.Internal(err)
}
