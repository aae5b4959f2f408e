// Package article は記事とコメントの作成・更新・削除、お気に入り操作を提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/conduit/internal/authz"
	"github.com/hitoshi/conduit/internal/events"
	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/slug"
	"github.com/hitoshi/conduit/internal/social"
)

// BodySanitizer は記事本文とコメント本文のサニタイズを行う。
type BodySanitizer interface {
	SanitizeBody(raw string) string
}

// CreateInput は記事作成の入力。
type CreateInput struct {
	Title       string
	Description string
	Body        string
	TagList     []string
}

// UpdateInput は記事更新の入力。nilのフィールドは変更しない。
// slug、著者、タグは更新対象外。
type UpdateInput struct {
	Title       *string
	Description *string
	Body        *string
}

// Service は記事に関するビジネスロジックを提供する。
type Service struct {
	articleRepo repository.ArticleRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	social      *social.Manager
	sanitizer   BodySanitizer
	notifier    *events.Notifier
	metrics     metrics.MetricsCollector
	slugify     func(title string) string
}

// NewService はServiceを生成する。sanitizer、notifier、mcはnilでもよい。
func NewService(
	articleRepo repository.ArticleRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	socialManager *social.Manager,
	sanitizer BodySanitizer,
	notifier *events.Notifier,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		articleRepo: articleRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		social:      socialManager,
		sanitizer:   sanitizer,
		notifier:    notifier,
		metrics:     mc,
		slugify:     slug.Slugify,
	}
}

// Create は記事を作成する。slugはタイトルから生成し、以後変更しない。
func (s *Service) Create(ctx context.Context, author *model.User, in CreateInput) (*model.Article, error) {
	ve := &model.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		ve.Add("title", model.MsgBlank)
	}
	if strings.TrimSpace(in.Description) == "" {
		ve.Add("description", model.MsgBlank)
	}
	if strings.TrimSpace(in.Body) == "" {
		ve.Add("body", model.MsgBlank)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	tags := in.TagList
	if tags == nil {
		tags = []string{}
	}

	now := time.Now()
	article := &model.Article{
		ID:          uuid.New().String(),
		Slug:        s.slugify(in.Title),
		Title:       in.Title,
		Description: in.Description,
		Body:        s.sanitizeBody(in.Body),
		TagList:     tags,
		AuthorID:    author.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.articleRepo.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.metrics.RecordArticleCreated()
	s.notifier.Notify(ctx, events.Event{
		Type:        events.TypeArticleCreated,
		ArticleID:   article.ID,
		ArticleSlug: article.Slug,
		UserID:      author.ID,
	})
	slog.Info("article created",
		slog.String("article_id", article.ID),
		slog.String("slug", article.Slug),
		slog.String("author_id", author.ID),
	)
	return article, nil
}

// GetBySlug はslugで記事と著者を取得する。
func (s *Service) GetBySlug(ctx context.Context, slugValue string) (*model.Article, *model.User, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, nil, err
	}
	author, err := s.userRepo.FindByID(ctx, article.AuthorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find author: %w", err)
	}
	return article, author, nil
}

// Update は記事のtitle/description/bodyを更新する。作成者以外はForbidden。
func (s *Service) Update(ctx context.Context, actor *model.User, slugValue string, in UpdateInput) (*model.Article, *model.User, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, nil, err
	}
	if !authz.CanModify(actor.ID, article.AuthorID) {
		return nil, nil, model.NewForbiddenError()
	}

	ve := &model.ValidationError{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			ve.Add("title", model.MsgBlank)
		}
		article.Title = *in.Title
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			ve.Add("description", model.MsgBlank)
		}
		article.Description = *in.Description
	}
	if in.Body != nil {
		if strings.TrimSpace(*in.Body) == "" {
			ve.Add("body", model.MsgBlank)
		}
		article.Body = s.sanitizeBody(*in.Body)
	}
	if err := ve.OrNil(); err != nil {
		return nil, nil, err
	}

	article.UpdatedAt = time.Now()
	if err := s.articleRepo.Update(ctx, article); err != nil {
		return nil, nil, fmt.Errorf("failed to update article: %w", err)
	}

	s.notifier.Notify(ctx, events.Event{
		Type:        events.TypeArticleUpdated,
		ArticleID:   article.ID,
		ArticleSlug: article.Slug,
		UserID:      actor.ID,
	})
	return article, actor, nil
}

// Delete は記事を削除する。作成者以外はForbidden。コメントとお気に入りも削除される。
func (s *Service) Delete(ctx context.Context, actor *model.User, slugValue string) error {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return err
	}
	if !authz.CanModify(actor.ID, article.AuthorID) {
		return model.NewForbiddenError()
	}

	if err := s.articleRepo.Delete(ctx, article.ID); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}

	s.notifier.Notify(ctx, events.Event{
		Type:        events.TypeArticleDeleted,
		ArticleID:   article.ID,
		ArticleSlug: article.Slug,
		UserID:      actor.ID,
	})
	slog.Info("article deleted",
		slog.String("article_id", article.ID),
		slog.String("slug", article.Slug),
	)
	return nil
}

// Favorite は記事をお気に入りに追加し、更新後の記事と著者を返す。
func (s *Service) Favorite(ctx context.Context, actor *model.User, slugValue string) (*model.Article, *model.User, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.social.Favorite(ctx, actor, article.ID)
	if err != nil {
		return nil, nil, err
	}
	return s.withAuthor(ctx, updated)
}

// Unfavorite は記事をお気に入りから除き、更新後の記事と著者を返す。
func (s *Service) Unfavorite(ctx context.Context, actor *model.User, slugValue string) (*model.Article, *model.User, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.social.Unfavorite(ctx, actor, article.ID)
	if err != nil {
		return nil, nil, err
	}
	return s.withAuthor(ctx, updated)
}

// AddComment は記事にコメントを追加する。
func (s *Service) AddComment(ctx context.Context, actor *model.User, slugValue, body string) (*model.Comment, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, model.NewValidationError("body", model.MsgBlank)
	}

	now := time.Now()
	comment := &model.Comment{
		ID:        uuid.New().String(),
		Body:      s.sanitizeBody(body),
		AuthorID:  actor.ID,
		ArticleID: article.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.notifier.Notify(ctx, events.Event{
		Type:        events.TypeCommentAdded,
		ArticleID:   article.ID,
		ArticleSlug: article.Slug,
		CommentID:   comment.ID,
		UserID:      actor.ID,
	})
	return comment, nil
}

// ListComments は記事のコメントを新しい順に返す。authorsはコメント著者IDからユーザーへの対応。
func (s *Service) ListComments(ctx context.Context, slugValue string) ([]*model.Comment, map[string]*model.User, error) {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return nil, nil, err
	}

	comments, err := s.commentRepo.ListByArticle(ctx, article.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list comments: %w", err)
	}

	ids := model.NewIDSet()
	for _, c := range comments {
		ids.Add(c.AuthorID)
	}
	authors, err := s.userRepo.FindByIDs(ctx, ids.Slice())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load comment authors: %w", err)
	}
	return comments, authors, nil
}

// DeleteComment はコメントを削除する。
// コメントが記事に属さない場合はNotFound、作成者以外はForbidden。
func (s *Service) DeleteComment(ctx context.Context, actor *model.User, slugValue, commentID string) error {
	article, err := s.findArticle(ctx, slugValue)
	if err != nil {
		return err
	}

	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil || comment.ArticleID != article.ID {
		return model.NewNotFoundError("comment", commentID)
	}
	if !authz.CanModify(actor.ID, comment.AuthorID) {
		return model.NewForbiddenError()
	}

	if err := s.commentRepo.Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	s.notifier.Notify(ctx, events.Event{
		Type:        events.TypeCommentDeleted,
		ArticleID:   article.ID,
		ArticleSlug: article.Slug,
		CommentID:   comment.ID,
		UserID:      actor.ID,
	})
	return nil
}

// Tags は記事に付与されたタグを重複なしで返す。
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.articleRepo.DistinctTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (s *Service) findArticle(ctx context.Context, slugValue string) (*model.Article, error) {
	article, err := s.articleRepo.FindBySlug(ctx, slugValue)
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	if article == nil {
		return nil, model.NewNotFoundError("article", slugValue)
	}
	return article, nil
}

func (s *Service) withAuthor(ctx context.Context, article *model.Article) (*model.Article, *model.User, error) {
	author, err := s.userRepo.FindByID(ctx, article.AuthorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find author: %w", err)
	}
	return article, author, nil
}

func (s *Service) sanitizeBody(body string) string {
	if s.sanitizer == nil {
		return body
	}
	return s.sanitizer.SanitizeBody(body)
}
