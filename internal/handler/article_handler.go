package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/conduit/internal/article"
	"github.com/hitoshi/conduit/internal/feed"
	"github.com/hitoshi/conduit/internal/middleware"
	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/view"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	Create(ctx context.Context, author *model.User, in article.CreateInput) (*model.Article, error)
	GetBySlug(ctx context.Context, slug string) (*model.Article, *model.User, error)
	Update(ctx context.Context, actor *model.User, slug string, in article.UpdateInput) (*model.Article, *model.User, error)
	Delete(ctx context.Context, actor *model.User, slug string) error
	Favorite(ctx context.Context, actor *model.User, slug string) (*model.Article, *model.User, error)
	Unfavorite(ctx context.Context, actor *model.User, slug string) (*model.Article, *model.User, error)
	AddComment(ctx context.Context, actor *model.User, slug, body string) (*model.Comment, error)
	ListComments(ctx context.Context, slug string) ([]*model.Comment, map[string]*model.User, error)
	DeleteComment(ctx context.Context, actor *model.User, slug, commentID string) error
	Tags(ctx context.Context) ([]string, error)
}

// FeedComposerInterface は記事一覧とフィードの取得インターフェース。
type FeedComposerInterface interface {
	ListArticles(ctx context.Context, filters feed.Filters, page feed.Page) (*feed.Result, error)
	Feed(ctx context.Context, viewer *model.User, page feed.Page) (*feed.Result, error)
}

// ArticleHandler は記事、コメント、タグのHTTPハンドラー。
type ArticleHandler struct {
	service  ArticleServiceInterface
	composer FeedComposerInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, composer FeedComposerInterface) *ArticleHandler {
	return &ArticleHandler{
		service:  service,
		composer: composer,
	}
}

type createArticleRequest struct {
	Article struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Body        string   `json:"body"`
		TagList     []string `json:"tagList"`
	} `json:"article"`
}

type updateArticleRequest struct {
	Article struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Body        *string `json:"body"`
	} `json:"article"`
}

type createCommentRequest struct {
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
}

type articleResponse struct {
	Article view.ArticleView `json:"article"`
}

type articleListResponse struct {
	Articles      []view.ArticleView `json:"articles"`
	ArticlesCount int                `json:"articlesCount"`
}

type commentResponse struct {
	Comment view.CommentView `json:"comment"`
}

type commentListResponse struct {
	Comments []view.CommentView `json:"comments"`
}

type tagListResponse struct {
	Tags []string `json:"tags"`
}

// List は記事一覧を返す。tag、author、favorited、limit、offsetで絞り込む。
// GET /api/articles
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := feed.ParsePage(q.Get("limit"), q.Get("offset"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.composer.ListArticles(r.Context(), feed.Filters{
		Tag:       q.Get("tag"),
		Author:    q.Get("author"),
		Favorited: q.Get("favorited"),
	}, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeArticleList(w, r, result)
}

// Feed はフォロー中のユーザーの記事を返す。
// GET /api/articles/feed
func (h *ArticleHandler) Feed(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	q := r.URL.Query()
	page, err := feed.ParsePage(q.Get("limit"), q.Get("offset"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.composer.Feed(r.Context(), actor, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeArticleList(w, r, result)
}

func (h *ArticleHandler) writeArticleList(w http.ResponseWriter, r *http.Request, result *feed.Result) {
	viewer := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, articleListResponse{
		Articles:      view.ProjectArticles(result.Articles, result.Authors, viewer),
		ArticlesCount: result.Total,
	})
}

// Create は記事を作成する。
// POST /api/articles
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	var req createArticleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), actor, article.CreateInput{
		Title:       req.Article.Title,
		Description: req.Article.Description,
		Body:        req.Article.Body,
		TagList:     req.Article.TagList,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, articleResponse{Article: view.ProjectArticle(created, actor, actor)})
}

// Get は記事を返す。
// GET /api/articles/{slug}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, author, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	viewer := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, articleResponse{Article: view.ProjectArticle(found, author, viewer)})
}

// Update は記事のtitle、description、bodyを更新する。著者本人のみ実行できる。
// PUT /api/articles/{slug}
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	var req updateArticleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, author, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "slug"), article.UpdateInput{
		Title:       req.Article.Title,
		Description: req.Article.Description,
		Body:        req.Article.Body,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, articleResponse{Article: view.ProjectArticle(updated, author, actor)})
}

// Delete は記事を削除する。著者本人のみ実行できる。
// DELETE /api/articles/{slug}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "slug")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Favorite は記事をお気に入りに追加する。
// POST /api/articles/{slug}/favorite
func (h *ArticleHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	h.changeFavorite(w, r, h.service.Favorite)
}

// Unfavorite はお気に入りを解除する。
// DELETE /api/articles/{slug}/favorite
func (h *ArticleHandler) Unfavorite(w http.ResponseWriter, r *http.Request) {
	h.changeFavorite(w, r, h.service.Unfavorite)
}

func (h *ArticleHandler) changeFavorite(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor *model.User, slug string) (*model.Article, *model.User, error),
) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	changed, author, err := op(r.Context(), actor, chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, articleResponse{Article: view.ProjectArticle(changed, author, actor)})
}

// ListComments は記事のコメント一覧を返す。
// GET /api/articles/{slug}/comments
func (h *ArticleHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, authors, err := h.service.ListComments(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	viewer := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, commentListResponse{Comments: view.ProjectComments(comments, authors, viewer)})
}

// AddComment は記事にコメントを追加する。
// POST /api/articles/{slug}/comments
func (h *ArticleHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	var req createCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.service.AddComment(r.Context(), actor, chi.URLParam(r, "slug"), req.Comment.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, commentResponse{Comment: view.ProjectComment(comment, actor, actor)})
}

// DeleteComment はコメントを削除する。コメントの投稿者本人のみ実行できる。
// DELETE /api/articles/{slug}/comments/{id}
func (h *ArticleHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	err := h.service.DeleteComment(r.Context(), actor, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tags は使用中のタグ一覧を返す。
// GET /api/tags
func (h *ArticleHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.Tags(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}

	writeJSON(w, http.StatusOK, tagListResponse{Tags: tags})
}
